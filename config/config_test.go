package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ATUI_TEST_DIR", "/opt/atlas")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tilde", "~/data", filepath.Join(home, "data")},
		{"env var", "$ATUI_TEST_DIR/cache", "/opt/atlas/cache"},
		{"absolute untouched", "/var/lib/atui", "/var/lib/atui"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandPath(tt.in)
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadCreatesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ATUI_BACKEND_URL", "")
	t.Setenv("ATUI_MODEL", "")
	t.Setenv("ATUI_DATA_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.BackendURL != "http://localhost:8080/api" {
		t.Errorf("BackendURL = %q, want default", cfg.BackendURL)
	}
	if cfg.DefaultModel != "gpt-4o" {
		t.Errorf("DefaultModel = %q, want gpt-4o", cfg.DefaultModel)
	}
	if cfg.RequestTimeout != 30 {
		t.Errorf("RequestTimeout = %d, want 30", cfg.RequestTimeout)
	}

	if !FileExists(GetSettingsFilePath()) {
		t.Error("expected settings.toml to be created")
	}
	if !FileExists(filepath.Join(cfg.DataDir(), "config.toml")) {
		t.Error("expected user config.toml to be created")
	}

	info, err := os.Stat(cfg.DataDir())
	if err != nil {
		t.Fatalf("stat data dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("data dir permissions = %o, want 0700", perm)
	}
}

func TestLoadEnvOnly(t *testing.T) {
	home := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ATUI_BACKEND_URL", "https://atlas.example.com/api")
	t.Setenv("ATUI_MODEL", "atlas-large")
	t.Setenv("ATUI_DATA_DIR", dataDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.BackendURL != "https://atlas.example.com/api" {
		t.Errorf("BackendURL = %q, want env value", cfg.BackendURL)
	}
	if cfg.DefaultModel != "atlas-large" {
		t.Errorf("DefaultModel = %q, want atlas-large", cfg.DefaultModel)
	}
	if cfg.DataDir() != filepath.Clean(dataDir) {
		t.Errorf("DataDir() = %q, want %q", cfg.DataDir(), dataDir)
	}

	// Fully env-configured runs must not write config files
	if FileExists(GetSettingsFilePath()) {
		t.Error("settings.toml should not be created when all env vars are set")
	}
}

func TestEnvOverridesFileConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ATUI_BACKEND_URL", "")
	t.Setenv("ATUI_MODEL", "")
	t.Setenv("ATUI_DATA_DIR", "")

	// First load writes the default files
	if _, err := Load(); err != nil {
		t.Fatalf("initial Load() error: %v", err)
	}

	t.Setenv("ATUI_MODEL", "atlas-mini")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DefaultModel != "atlas-mini" {
		t.Errorf("DefaultModel = %q, want env override atlas-mini", cfg.DefaultModel)
	}
	if cfg.BackendURL != "http://localhost:8080/api" {
		t.Errorf("BackendURL = %q, want file value", cfg.BackendURL)
	}
}

func TestHasAllEnvVars(t *testing.T) {
	t.Setenv("ATUI_BACKEND_URL", "http://localhost:8080/api")
	t.Setenv("ATUI_MODEL", "")
	t.Setenv("ATUI_DATA_DIR", "")

	if HasAllEnvVars() {
		t.Error("HasAllEnvVars() = true with two vars missing")
	}

	t.Setenv("ATUI_MODEL", "atlas-mini")
	t.Setenv("ATUI_DATA_DIR", t.TempDir())
	if !HasAllEnvVars() {
		t.Error("HasAllEnvVars() = false with all three set")
	}
}

func TestUserConfigRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	in := &UserConfig{
		Backend: BackendConfig{URL: "https://atlas.internal/api", RequestTimeout: 60},
		Chat:    ChatConfig{DefaultModel: "atlas-large", DefaultProvider: "anthropic", UserName: "Riley"},
	}
	if err := SaveUserConfig(in, dataDir); err != nil {
		t.Fatalf("SaveUserConfig() error: %v", err)
	}

	out, err := LoadUserConfig(dataDir)
	if err != nil {
		t.Fatalf("LoadUserConfig() error: %v", err)
	}

	if out.Backend.URL != in.Backend.URL {
		t.Errorf("Backend.URL = %q, want %q", out.Backend.URL, in.Backend.URL)
	}
	if out.Backend.RequestTimeout != in.Backend.RequestTimeout {
		t.Errorf("Backend.RequestTimeout = %d, want %d", out.Backend.RequestTimeout, in.Backend.RequestTimeout)
	}
	if out.Chat.UserName != "Riley" {
		t.Errorf("Chat.UserName = %q, want Riley", out.Chat.UserName)
	}
}

func TestGeneratedTemplatesParse(t *testing.T) {
	var sys SystemConfig
	if _, err := toml.Decode(GenerateSystemConfigTemplate(), &sys); err != nil {
		t.Fatalf("system template does not parse: %v", err)
	}
	if sys.DataDirectory != DefaultSystemConfig().DataDirectory {
		t.Errorf("template data_directory = %q, want %q", sys.DataDirectory, DefaultSystemConfig().DataDirectory)
	}

	var user UserConfig
	if _, err := toml.Decode(GenerateUserConfigTemplate(), &user); err != nil {
		t.Fatalf("user template does not parse: %v", err)
	}
	def := DefaultUserConfig()
	if user.Backend.URL != def.Backend.URL {
		t.Errorf("template backend url = %q, want %q", user.Backend.URL, def.Backend.URL)
	}
	if user.Chat.DefaultModel != def.Chat.DefaultModel {
		t.Errorf("template default_model = %q, want %q", user.Chat.DefaultModel, def.Chat.DefaultModel)
	}
}

func TestCredentialStorePlainText(t *testing.T) {
	dataDir := t.TempDir()

	store, err := LoadCredentials(dataDir)
	if err != nil {
		t.Fatalf("LoadCredentials() error: %v", err)
	}
	if tok, _ := store.Token(); tok != "" {
		t.Errorf("fresh store Token() = %q, want empty", tok)
	}

	if err := store.SetToken("atlas-pat-12345"); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	credPath := filepath.Join(dataDir, "credentials.toml")
	info, err := os.Stat(credPath)
	if err != nil {
		t.Fatalf("credentials file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials file permissions = %o, want 0600", perm)
	}

	data, err := os.ReadFile(credPath)
	if err != nil {
		t.Fatalf("read credentials: %v", err)
	}
	if !strings.Contains(string(data), "atlas-pat-12345") {
		t.Error("plain text store should contain the raw token")
	}

	reloaded, err := LoadCredentials(dataDir)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if tok, _ := reloaded.Token(); tok != "atlas-pat-12345" {
		t.Errorf("reloaded Token() = %q, want atlas-pat-12345", tok)
	}

	if err := reloaded.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if FileExists(credPath) {
		t.Error("Clear() should remove the credentials file")
	}
	if tok, _ := reloaded.Token(); tok != "" {
		t.Errorf("cleared Token() = %q, want empty", tok)
	}
}

func TestKeybindingDefaults(t *testing.T) {
	kb := DefaultKeybindings()

	tests := []struct {
		action string
		want   string
	}{
		{"stop_generation", "ctrl+k"},
		{"regenerate", "ctrl+g"},
		{"conversation_switcher", "ctrl+o"},
		{"scroll_up", "pgup"},
		{"quit", "ctrl+q"},
		{"unknown_action", ""},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			if got := kb.GetActionKey(tt.action); got != tt.want {
				t.Errorf("GetActionKey(%q) = %q, want %q", tt.action, got, tt.want)
			}
		})
	}
}

func TestKeybindingOverrides(t *testing.T) {
	kb := DefaultKeybindings()
	kb.Actions = map[string]string{"stop_generation": "alt+x"}

	if got := kb.GetActionKey("stop_generation"); got != "alt+x" {
		t.Errorf("override GetActionKey = %q, want alt+x", got)
	}
	if got := kb.GetActionKey("regenerate"); got != "ctrl+g" {
		t.Errorf("non-overridden GetActionKey = %q, want ctrl+g", got)
	}

	kb.Modifiers.Primary = "alt"
	if got := kb.GetActionKey("regenerate"); got != "alt+g" {
		t.Errorf("modifier swap GetActionKey = %q, want alt+g", got)
	}

	valid, warning := kb.Validate()
	if !valid {
		t.Error("alt modifiers should validate")
	}
	if warning == "" {
		t.Error("alt modifiers should carry a warning")
	}
}

func TestSecondaryKeyShiftFolding(t *testing.T) {
	kb := DefaultKeybindings()

	// Single letters fold shift into uppercase
	if got := kb.SecondaryKey("s"); got != "ctrl+S" {
		t.Errorf("SecondaryKey(s) = %q, want ctrl+S", got)
	}
	// Special keys keep explicit shift
	if got := kb.SecondaryKey("f1"); got != "ctrl+shift+f1" {
		t.Errorf("SecondaryKey(f1) = %q, want ctrl+shift+f1", got)
	}
}

func TestAESGCMRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	plaintext := []byte(`{"token":"atlas-pat-12345"}`)
	ciphertext, err := encryptAESGCM(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}
	if strings.Contains(string(ciphertext), "atlas-pat") {
		t.Error("ciphertext leaks plaintext")
	}

	got, err := decryptAESGCM(ciphertext, key)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("round trip = %q, want %q", got, plaintext)
	}

	// Tampering must fail authentication
	ciphertext[len(ciphertext)-1] ^= 0xff
	if _, err := decryptAESGCM(ciphertext, key); err == nil {
		t.Error("tampered ciphertext should not decrypt")
	}

	if _, err := decryptAESGCM([]byte("short"), key); err == nil {
		t.Error("truncated ciphertext should not decrypt")
	}
}

func TestCreateATUIKeyLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	keyPath, err := CreateATUIKey("")
	if err != nil {
		t.Fatalf("CreateATUIKey() error: %v", err)
	}
	if filepath.Base(keyPath) != "atui_ed25519" {
		t.Errorf("key name = %q, want atui_ed25519", filepath.Base(keyPath))
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key permissions = %o, want 0600", perm)
	}
	if !FileExists(keyPath + ".pub") {
		t.Error("public key not written")
	}

	if enc, err := IsSSHKeyEncrypted(keyPath); err != nil || enc {
		t.Errorf("IsSSHKeyEncrypted = %v, %v; want false, nil", enc, err)
	}

	keys := FindSSHKeys()
	if len(keys) == 0 || keys[0] != keyPath {
		t.Errorf("FindSSHKeys() = %v, want %q first", keys, keyPath)
	}

	// A taken name gets a dated variant, never an overwrite
	second, err := CreateATUIKey("")
	if err != nil {
		t.Fatalf("second CreateATUIKey() error: %v", err)
	}
	if second == keyPath {
		t.Error("second key overwrote the first")
	}
}

func TestSealerRoundTripWithGeneratedKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	keyPath, err := CreateATUIKey("")
	if err != nil {
		t.Fatalf("CreateATUIKey() error: %v", err)
	}

	s := newSealer(keyPath, "")
	if err := s.init(); err != nil {
		t.Fatalf("init() error: %v", err)
	}
	blob, err := s.seal([]byte(`{"token":"atlas-pat-12345"}`))
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}

	// ed25519 signs deterministically, so a fresh sealer over the same
	// key must derive the same AES key and open the blob.
	s2 := newSealer(keyPath, "")
	if err := s2.init(); err != nil {
		t.Fatalf("second init() error: %v", err)
	}
	got, err := s2.open(blob)
	if err != nil {
		t.Fatalf("open() error: %v", err)
	}
	if string(got) != `{"token":"atlas-pat-12345"}` {
		t.Errorf("open() = %q, want the sealed payload", got)
	}
}

func TestSealerEncryptedKeyNeedsPassphrase(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	keyPath, err := CreateATUIKey("workshop")
	if err != nil {
		t.Fatalf("CreateATUIKey() error: %v", err)
	}

	if enc, err := IsSSHKeyEncrypted(keyPath); err != nil || !enc {
		t.Fatalf("IsSSHKeyEncrypted = %v, %v; want true, nil", enc, err)
	}

	s := newSealer(keyPath, "")
	if err := s.init(); err == nil || !strings.Contains(err.Error(), "passphrase required") {
		t.Fatalf("init() without passphrase = %v, want passphrase required error", err)
	}

	s = newSealer(keyPath, "workshop")
	if err := s.init(); err != nil {
		t.Fatalf("init() with passphrase error: %v", err)
	}
}
