package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetConfigDir returns the directory settings.toml lives in,
// ~/.config/atui on every platform. The data directory is the part
// that moves; this one stays put so the app can always find it.
func GetConfigDir() string {
	return filepath.Join(GetHomeDir(), ".config", "atui")
}

func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "settings.toml")
}

// GetHomeDir resolves the home directory without ever failing; a path
// under a guessed home is still more useful at startup than an error.
func GetHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if runtime.GOOS == "windows" {
		if home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH"); home != "" {
			return home
		}
		return `C:\`
	}
	return "/"
}

// ExpandPath expands a leading ~ and any environment variables, then
// cleans the result.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		path = GetHomeDir()
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(GetHomeDir(), path[2:])
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// EnsureDir creates path user-only. Config and data directories hold
// tokens, so nothing under them is ever group-readable.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDataDirPermissions tightens an existing data directory to 0700,
// creating it when missing. Directories left by older installs may be
// looser than the creation default.
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dataDir, 0700)
	}
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0700 {
		return os.Chmod(dataDir, 0700)
	}
	return nil
}
