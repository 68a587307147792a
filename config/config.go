package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type BackendConfig struct {
	URL            string `toml:"url"`
	RequestTimeout int    `toml:"request_timeout_seconds"`
}

type ChatConfig struct {
	DefaultModel    string `toml:"default_model"`
	DefaultProvider string `toml:"default_provider"`
	UserName        string `toml:"user_name,omitempty"`
}

type UserConfig struct {
	Backend BackendConfig `toml:"backend"`
	Chat    ChatConfig    `toml:"chat"`
}

// Config is the flattened runtime view the rest of the app consumes.
type Config struct {
	DataDirectory   string
	BackendURL      string
	RequestTimeout  int
	DefaultModel    string
	DefaultProvider string
	UserName        string
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("ATUI_BACKEND_URL"); u != "" {
		c.BackendURL = u
	}
	if model := os.Getenv("ATUI_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if provider := os.Getenv("ATUI_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
	if dataDir := os.Getenv("ATUI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("ATUI_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - debug output can contain message content
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (ATUI_DEBUG=%s) ===", os.Getenv("ATUI_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

func HasAllEnvVars() bool {
	return os.Getenv("ATUI_BACKEND_URL") != "" &&
		os.Getenv("ATUI_MODEL") != "" &&
		os.Getenv("ATUI_DATA_DIR") != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory:   "~/.local/share/atui",
		BackendURL:      "http://localhost:8080/api",
		RequestTimeout:  30,
		DefaultModel:    "gpt-4o",
		DefaultProvider: "openai",
	}

	settingsPath := GetSettingsFilePath()

	if FileExists(settingsPath) || !HasAllEnvVars() {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory

		userCfg, err := LoadUserConfig(cfg.DataDir())
		if err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
		cfg.BackendURL = userCfg.Backend.URL
		if userCfg.Backend.RequestTimeout > 0 {
			cfg.RequestTimeout = userCfg.Backend.RequestTimeout
		}
		cfg.DefaultModel = userCfg.Chat.DefaultModel
		cfg.DefaultProvider = userCfg.Chat.DefaultProvider
		cfg.UserName = userCfg.Chat.UserName
	}

	// Environment always wins over files.
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}
