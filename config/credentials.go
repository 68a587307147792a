package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SecurityMethod defines the credential storage method
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

// CredentialStore manages the backend bearer token, either plain text
// or encrypted with the user's SSH key.
type CredentialStore struct {
	method     SecurityMethod
	dataDir    string
	token      string
	sshKeyPath string
	passphrase string
	enc        *sealer
}

// LoadCredentials opens the credential store for a data directory.
// The storage method is detected from which file is present: an
// encrypted store takes priority over a plain text one. A missing
// store is not an error, it just holds no token yet.
func LoadCredentials(dataDir string) (*CredentialStore, error) {
	c := &CredentialStore{
		method:  SecurityPlainText,
		dataDir: dataDir,
	}

	if FileExists(encryptedCredentialsPath(dataDir)) {
		c.method = SecuritySSHKey
	}

	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCredentialsWithPassphrase opens an encrypted store whose SSH key
// needs a passphrase. Fails with a decrypt error when the passphrase is
// wrong, so callers can re-prompt.
func LoadCredentialsWithPassphrase(dataDir, passphrase string) (*CredentialStore, error) {
	c := &CredentialStore{
		method:  SecurityPlainText,
		dataDir: dataDir,
	}

	if FileExists(encryptedCredentialsPath(dataDir)) {
		c.method = SecuritySSHKey
	}
	c.SetPassphrase(passphrase)

	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetPassphrase sets the passphrase for decrypting the SSH key. The
// sealer is rebuilt on next use so the new passphrase takes effect.
func (c *CredentialStore) SetPassphrase(passphrase string) {
	c.passphrase = passphrase
	c.enc = nil
}

// SetSSHKeyPath overrides the SSH key used for the encrypted store.
// An empty path means the best available key is discovered at use.
func (c *CredentialStore) SetSSHKeyPath(path string) {
	c.sshKeyPath = path
	c.enc = nil
}

// Token returns the backend bearer token. Empty means unauthenticated.
func (c *CredentialStore) Token() (string, error) {
	return c.token, nil
}

// Method returns the current storage method
func (c *CredentialStore) Method() SecurityMethod {
	return c.method
}

// SetToken stores the backend token and persists it with the current method.
func (c *CredentialStore) SetToken(token string) error {
	c.token = token
	return c.save()
}

// EnableEncryption switches the store to SSH key encryption and re-saves.
// The plain text file is removed once the encrypted one is written.
func (c *CredentialStore) EnableEncryption(sshKeyPath string) error {
	if sshKeyPath != "" {
		c.sshKeyPath = sshKeyPath
	}
	c.method = SecuritySSHKey
	c.enc = nil

	if err := c.save(); err != nil {
		return err
	}

	plainPath := credentialsPath(c.dataDir)
	if FileExists(plainPath) {
		if err := os.Remove(plainPath); err != nil {
			return fmt.Errorf("failed to remove plain text credentials: %w", err)
		}
	}
	return nil
}

// Clear wipes the token and removes both credential files.
func (c *CredentialStore) Clear() error {
	c.token = ""
	for _, path := range []string{credentialsPath(c.dataDir), encryptedCredentialsPath(c.dataDir)} {
		if FileExists(path) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove credentials file: %w", err)
			}
		}
	}
	return nil
}

func (c *CredentialStore) load() error {
	switch c.method {
	case SecurityPlainText:
		token, err := loadPlainText(c.dataDir)
		if err != nil {
			return err
		}
		c.token = token
		return nil

	case SecuritySSHKey:
		token, err := c.loadSSHEncrypted()
		if err != nil {
			return err
		}
		c.token = token
		return nil

	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

func (c *CredentialStore) save() error {
	switch c.method {
	case SecurityPlainText:
		return savePlainText(c.dataDir, c.token)

	case SecuritySSHKey:
		return c.saveSSHEncrypted()

	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

// credentialsPath returns the path to the plain text credentials file
func credentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}

// encryptedCredentialsPath returns the path to the encrypted credentials file
func encryptedCredentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.enc")
}

// ===== Plain Text Storage =====

type credentialsFile struct {
	Backend backendCredentials `toml:"backend"`
}

type backendCredentials struct {
	Token string `toml:"token"`
}

// loadPlainText loads the token from the plain text TOML file
func loadPlainText(dataDir string) (string, error) {
	path := credentialsPath(dataDir)

	// If file doesn't exist, return empty token (no error)
	if !FileExists(path) {
		return "", nil
	}

	var cf credentialsFile
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	return cf.Backend.Token, nil
}

// savePlainText saves the token to the plain text TOML file with 0600 permissions
func savePlainText(dataDir string, token string) error {
	path := credentialsPath(dataDir)

	cf := credentialsFile{
		Backend: backendCredentials{Token: token},
	}

	// Create file with 0600 permissions (owner read/write only)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cf); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	return nil
}

// ===== SSH Key Encrypted Storage =====

type encryptedCredentials struct {
	Token string `json:"token"`
}

func (c *CredentialStore) ensureEncryption() error {
	// Passphrase state is intentionally never logged.
	if c.enc == nil {
		c.enc = newSealer(c.sshKeyPath, c.passphrase)
	}
	if err := c.enc.init(); err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	return nil
}

// loadSSHEncrypted loads and decrypts the token using SSH key encryption
func (c *CredentialStore) loadSSHEncrypted() (string, error) {
	path := encryptedCredentialsPath(c.dataDir)

	// If file doesn't exist, return empty token (no error)
	if !FileExists(path) {
		return "", nil
	}

	if err := c.ensureEncryption(); err != nil {
		return "", err
	}

	encryptedData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read encrypted credentials: %w", err)
	}

	decryptedData, err := c.enc.open(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds encryptedCredentials
	if err := json.Unmarshal(decryptedData, &creds); err != nil {
		return "", fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}

	return creds.Token, nil
}

// saveSSHEncrypted encrypts and saves the token using SSH key encryption
func (c *CredentialStore) saveSSHEncrypted() error {
	path := encryptedCredentialsPath(c.dataDir)

	if err := c.ensureEncryption(); err != nil {
		return err
	}

	jsonData, err := json.Marshal(encryptedCredentials{Token: c.token})
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	encryptedData, err := c.enc.seal(jsonData)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	// Write to file with 0600 permissions
	if err := os.WriteFile(path, encryptedData, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted credentials: %w", err)
	}

	return nil
}
