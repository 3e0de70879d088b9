package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDirectory returns the directory holding the assetmover config file.
//
// Locations:
//   - Windows: %USERPROFILE%\.config\assetmover
//   - Unix: $XDG_CONFIG_HOME/assetmover (falls back to ~/.config/assetmover)
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, ".config", "assetmover")
		}
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "assetmover")
		}
		return filepath.Join(homeDir, ".config", "assetmover")
	}
	return filepath.Join(configDir, "assetmover")
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), "config")
}

// LogDirectory returns the directory used for rotated log files.
func LogDirectory() string {
	return filepath.Join(ConfigDirectory(), "logs")
}
