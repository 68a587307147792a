package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// keyDerivationTag is the fixed message signed to derive the AES key.
// Changing it orphans every credentials.enc already on disk.
const keyDerivationTag = "atui-encryption-key-derivation-v1"

var errSealerNotReady = errors.New("encryption key not derived")

// sealer encrypts credential blobs with AES-256-GCM under a key derived
// from the user's SSH key. The private key itself is the secret: the
// AES key is recomputed from a signature on every start and never
// written anywhere.
type sealer struct {
	sshKeyPath string
	passphrase string
	aesKey     []byte
}

func newSealer(sshKeyPath, passphrase string) *sealer {
	return &sealer{sshKeyPath: sshKeyPath, passphrase: passphrase}
}

// init resolves the key path, loads the signer and derives the AES key.
// An encrypted key without a passphrase fails here with a "passphrase
// required" error callers detect to prompt for one.
func (s *sealer) init() error {
	if s.aesKey != nil {
		return nil
	}

	if s.sshKeyPath == "" {
		keys := FindSSHKeys()
		if len(keys) == 0 {
			return fmt.Errorf("no SSH private key found in ~/.ssh")
		}
		s.sshKeyPath = keys[0]
		if Debug && DebugLog != nil {
			DebugLog.Printf("[Credentials] using discovered key %s", s.sshKeyPath)
		}
	}

	encrypted, err := IsSSHKeyEncrypted(s.sshKeyPath)
	if err != nil {
		return fmt.Errorf("failed to check SSH key: %w", err)
	}
	if encrypted && s.passphrase == "" {
		return fmt.Errorf("SSH key is encrypted - passphrase required")
	}

	var signer ssh.Signer
	if encrypted {
		signer, err = LoadSSHPrivateKeyWithPassphrase(s.sshKeyPath, s.passphrase)
	} else {
		signer, err = LoadSSHPrivateKey(s.sshKeyPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load SSH key: %w", err)
	}

	key, err := deriveAESKey(signer)
	if err != nil {
		return err
	}
	s.aesKey = key
	return nil
}

// seal encrypts plaintext as [nonce || ciphertext+tag].
func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	if s.aesKey == nil {
		return nil, errSealerNotReady
	}
	return encryptAESGCM(plaintext, s.aesKey)
}

// open decrypts a blob produced by seal.
func (s *sealer) open(blob []byte) ([]byte, error) {
	if s.aesKey == nil {
		return nil, errSealerNotReady
	}
	return decryptAESGCM(blob, s.aesKey)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptAESGCM(blob, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// deriveAESKey hashes a signature over the fixed tag into a 32-byte AES
// key. Only deterministic signature schemes give a stable key across
// runs, so ECDSA and DSA keys are rejected up front instead of sealing
// data nothing can reopen.
func deriveAESKey(signer ssh.Signer) ([]byte, error) {
	switch t := signer.PublicKey().Type(); t {
	case ssh.KeyAlgoED25519, ssh.KeyAlgoRSA:
	default:
		return nil, fmt.Errorf("%s keys sign non-deterministically and cannot protect the credential store; use an ed25519 or RSA key", t)
	}

	sig, err := signer.Sign(rand.Reader, []byte(keyDerivationTag))
	if err != nil {
		return nil, fmt.Errorf("failed to sign derivation tag: %w", err)
	}

	sum := sha256.Sum256(sig.Blob)
	return sum[:], nil
}
