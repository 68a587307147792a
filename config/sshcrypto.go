package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Key discovery order. The dedicated atui key wins so that rotating a
// general-purpose key never silently changes the credential cipher.
// ECDSA and DSA names are not listed: their signatures are randomized,
// which the key derivation cannot use.
var sshKeyNames = []string{
	"atui_ed25519",
	"id_ed25519",
	"id_rsa",
}

func readKeyFile(keyPath string) ([]byte, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}
	return data, nil
}

// LoadSSHPrivateKey parses an unencrypted private key.
func LoadSSHPrivateKey(keyPath string) (ssh.Signer, error) {
	data, err := readKeyFile(keyPath)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}
	return signer, nil
}

// LoadSSHPrivateKeyWithPassphrase parses a passphrase-protected key.
func LoadSSHPrivateKeyWithPassphrase(keyPath, passphrase string) (ssh.Signer, error) {
	data, err := readKeyFile(keyPath)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key (wrong passphrase?): %w", err)
	}
	return signer, nil
}

// IsSSHKeyEncrypted reports whether the key needs a passphrase, without
// prompting for one.
func IsSSHKeyEncrypted(keyPath string) (bool, error) {
	data, err := readKeyFile(keyPath)
	if err != nil {
		return false, err
	}

	_, err = ssh.ParsePrivateKey(data)
	if err == nil {
		return false, nil
	}

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return true, nil
	}
	// Legacy PEM ciphers surface as plain errors, not the typed one.
	if strings.Contains(err.Error(), "encrypted") || strings.Contains(err.Error(), "passphrase") {
		return true, nil
	}
	return false, fmt.Errorf("invalid SSH key: %w", err)
}

// FindSSHKeys returns the usable private keys under ~/.ssh in preference
// order. A missing .ssh directory is just an empty result.
func FindSSHKeys() []string {
	sshDir := filepath.Join(GetHomeDir(), ".ssh")

	var found []string
	for _, name := range sshKeyNames {
		keyPath := filepath.Join(sshDir, name)
		if looksLikePrivateKey(keyPath) {
			found = append(found, keyPath)
		}
	}
	return found
}

func looksLikePrivateKey(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "BEGIN") &&
		strings.Contains(string(data), "PRIVATE KEY")
}

// CreateATUIKey generates a fresh ed25519 key pair under ~/.ssh and
// returns the private key path. An empty passphrase leaves the key
// unprotected; the caller tells the user how to add one later. When
// the default name is taken, a dated variant is used, never an
// overwrite.
func CreateATUIKey(passphrase string) (string, error) {
	sshDir := filepath.Join(GetHomeDir(), ".ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create .ssh directory: %w", err)
	}

	keyPath, err := unusedKeyPath(sshDir)
	if err != nil {
		return "", err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "atui-encryption-key")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "atui-encryption-key", []byte(passphrase))
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode key: %w", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		return "", fmt.Errorf("failed to write private key: %w", err)
	}

	if err := writePublicKey(keyPath+".pub", pub); err != nil {
		return "", err
	}

	if Debug && DebugLog != nil {
		DebugLog.Printf("[SSH] created encryption key at %s", keyPath)
	}
	return keyPath, nil
}

func writePublicKey(path string, pub ed25519.PublicKey) error {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return fmt.Errorf("failed to encode public key: %w", err)
	}

	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " atui-encryption-key\n"
	if err := os.WriteFile(path, []byte(line), 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// unusedKeyPath picks atui_ed25519, or a dated variant when that name
// is already taken.
func unusedKeyPath(sshDir string) (string, error) {
	base := filepath.Join(sshDir, "atui_ed25519")
	if !FileExists(base) {
		return base, nil
	}

	date := time.Now().Format("20060102")
	for n := 1; n <= 99; n++ {
		candidate := fmt.Sprintf("%s_%s%02d", base, date, n)
		if !FileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free key name left under %s", sshDir)
}
