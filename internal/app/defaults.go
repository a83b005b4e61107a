package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths used when no flag overrides them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - ARCLIGHT_CONFIG_PATH: config file location (default: ~/.config/arclight.toml)
//   - ARCLIGHT_HOME: base directory for keys, journal and local ledger (default: ~/.local/share/arclight)
func GetDefaults() (*Defaults, error) {
	configPath := os.Getenv("ARCLIGHT_CONFIG_PATH")
	baseDir := os.Getenv("ARCLIGHT_HOME")

	if configPath == "" || baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(homeDir, ".config", "arclight.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(homeDir, ".local", "share", "arclight")
		}
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}
