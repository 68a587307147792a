package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config files are created from commented templates on first use, so a
// fresh install always has something to edit. Decoding layers the file
// over the hardcoded defaults; missing keys keep their default value.

func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	path := GetSettingsFilePath()
	err := loadOrCreate(path, cfg, func() error {
		if err := EnsureDir(GetConfigDir()); err != nil {
			return err
		}
		return writeTemplate(path, GenerateSystemConfigTemplate())
	})
	if err != nil {
		return nil, fmt.Errorf("system config: %w", err)
	}
	return cfg, nil
}

func LoadUserConfig(dataDir string) (*UserConfig, error) {
	cfg := DefaultUserConfig()
	path := filepath.Join(dataDir, "config.toml")
	err := loadOrCreate(path, cfg, func() error {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return err
		}
		return writeTemplate(path, GenerateUserConfigTemplate())
	})
	if err != nil {
		return nil, fmt.Errorf("user config: %w", err)
	}
	return cfg, nil
}

// SaveUserConfig replaces the user config file with the given values.
// Comments from the template do not survive a save.
func SaveUserConfig(cfg *UserConfig, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dataDir, "config.toml")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create user config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode user config: %w", err)
	}
	return nil
}

// loadOrCreate decodes path into dst, materializing the template first
// when the file does not exist. A just-created file is not decoded; dst
// already holds the defaults the template spells out.
func loadOrCreate(path string, dst any, create func() error) error {
	if !FileExists(path) {
		return create()
	}
	if _, err := toml.DecodeFile(path, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeTemplate creates a config file that is not there yet. Config files
// can carry backend settings, so they are always 0600.
func writeTemplate(path, content string) error {
	if FileExists(path) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0600)
}
