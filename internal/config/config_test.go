package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Morphs.Enabled {
		t.Error("expected morphs to be enabled by default")
	}
	if cfg.Morphs.ParallelShapes {
		t.Error("expected parallel_shapes to be false by default")
	}
	if cfg.Morphs.CacheLimit != 2*1024*1024*1024 {
		t.Errorf("expected cache limit 2GiB, got %d", cfg.Morphs.CacheLimit)
	}
	if cfg.Morphs.DataDir != "Data" {
		t.Errorf("expected data dir 'Data', got %s", cfg.Morphs.DataDir)
	}
	if len(cfg.Morphs.Archives) != 0 {
		t.Errorf("expected no archives, got %v", cfg.Morphs.Archives)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
morphs:
  enabled: false
  parallel_shapes: true
  cache_limit: 1048576
  data_dir: "/games/fo4/Data"
  archives:
    - "base.bmp"
    - "patch.bmp"
  mods:
    - "LooksMenu.esp"

logging:
  level: "debug"
  log_file: "morph.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Morphs.Enabled {
		t.Error("expected enabled to be false")
	}
	if !cfg.Morphs.ParallelShapes {
		t.Error("expected parallel_shapes to be true")
	}
	if cfg.Morphs.CacheLimit != 1048576 {
		t.Errorf("expected cache limit 1048576, got %d", cfg.Morphs.CacheLimit)
	}
	if cfg.Morphs.DataDir != "/games/fo4/Data" {
		t.Errorf("expected data dir /games/fo4/Data, got %s", cfg.Morphs.DataDir)
	}
	if len(cfg.Morphs.Archives) != 2 || cfg.Morphs.Archives[1] != "patch.bmp" {
		t.Errorf("unexpected archives %v", cfg.Morphs.Archives)
	}
	if len(cfg.Morphs.Mods) != 1 || cfg.Morphs.Mods[0] != "LooksMenu.esp" {
		t.Errorf("unexpected mods %v", cfg.Morphs.Mods)
	}
	// Not in the file, keeps the default.
	if cfg.Morphs.SliderDir != "F4SE/Plugins/F4EE/Sliders" {
		t.Errorf("expected default slider dir, got %s", cfg.Morphs.SliderDir)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "morph.log" {
		t.Errorf("expected log file 'morph.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
morphs:
  cache_limit: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Morphs.CacheLimit = -5
	cfg.Logging.Level = ""

	validate(cfg)

	if cfg.Morphs.CacheLimit != DefaultCacheLimit {
		t.Errorf("expected cache limit reset to %d, got %d", DefaultCacheLimit, cfg.Morphs.CacheLimit)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level reset to info, got %s", cfg.Logging.Level)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("HOME", tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte("morphs:\n  enabled: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path != FileName {
		t.Errorf("expected %s in current directory, got %q", FileName, path)
	}
}

func TestRegisterFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug",
			args: []string{"-debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "cache limit",
			args: []string{"-cache-limit", "4096"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Morphs.CacheLimit != 4096 {
					t.Errorf("expected cache limit 4096, got %d", cfg.Morphs.CacheLimit)
				}
			},
		},
		{
			name: "parallel",
			args: []string{"-parallel"},
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Morphs.ParallelShapes {
					t.Error("expected parallel_shapes with -parallel")
				}
			},
		},
		{
			name: "data dir",
			args: []string{"-data", "/tmp/Data"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Morphs.DataDir != "/tmp/Data" {
					t.Errorf("expected data dir /tmp/Data, got %s", cfg.Morphs.DataDir)
				}
			},
		},
		{
			name: "no flags",
			args: nil,
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Morphs.CacheLimit != DefaultCacheLimit || cfg.Logging.Level != "info" {
					t.Errorf("expected defaults, got %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			flags := RegisterFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			cfg := Default()
			flags.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	yamlContent := `
morphs:
  cache_limit: 1000
  data_dir: "FromFile"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(&Flags{Config: configPath, CacheLimit: 2000})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Flag beats file.
	if cfg.Morphs.CacheLimit != 2000 {
		t.Errorf("expected cache limit 2000 from flag, got %d", cfg.Morphs.CacheLimit)
	}
	// File beats default.
	if cfg.Morphs.DataDir != "FromFile" {
		t.Errorf("expected data dir FromFile, got %s", cfg.Morphs.DataDir)
	}
}

func TestLoad_NilFlags(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("HOME", tmpDir)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil) failed: %v", err)
	}
	if !cfg.Morphs.Enabled {
		t.Error("expected defaults when no file or flags are given")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	cfg := Default()
	cfg.Morphs.Mods = []string{"A.esp", "B.esp"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := Load(&Flags{Config: path})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(loaded.Morphs.Mods) != 2 || loaded.Morphs.Mods[1] != "B.esp" {
		t.Errorf("mods not preserved: %v", loaded.Morphs.Mods)
	}
}
