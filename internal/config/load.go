package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory and in
// ConfigDir.
const FileName = "bodymorph.yaml"

// Load builds the configuration from defaults, then the config file, then
// flags. flags may be nil.
func Load(flags *Flags) (*Config, error) {
	cfg := Default()

	path := ""
	if flags != nil {
		path = flags.Config
	}
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	flags.apply(cfg)
	validate(cfg)
	return cfg, nil
}

func findConfigFile() string {
	for _, path := range []string{FileName, filepath.Join(ConfigDir(), FileName)} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "BodyMorph")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "BodyMorph")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "bodymorph")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "bodymorph")
	}
}

// loadFromFile merges a YAML file over cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate resets values a config file may leave unusable.
func validate(cfg *Config) {
	if cfg.Morphs.CacheLimit <= 0 {
		cfg.Morphs.CacheLimit = DefaultCacheLimit
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
