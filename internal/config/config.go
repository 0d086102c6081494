// Package config handles body morph configuration loading and management.
package config

// DefaultCacheLimit is the morph cache budget in bytes (2 GiB).
const DefaultCacheLimit int64 = 2 << 30

// Config holds all settings.
type Config struct {
	Morphs  MorphConfig   `yaml:"morphs"`
	Logging LoggingConfig `yaml:"logging"`
}

// MorphConfig holds morph engine settings.
type MorphConfig struct {
	Enabled        bool     `yaml:"enabled"`         // Keep loaded weight data
	ParallelShapes bool     `yaml:"parallel_shapes"` // Deform shapes concurrently
	WeldSeams      bool     `yaml:"weld_seams"`      // Keep split seam vertices together
	CacheLimit     int64    `yaml:"cache_limit"`     // Morph cache budget in bytes
	DataDir        string   `yaml:"data_dir"`        // Loose file root
	Archives       []string `yaml:"archives"`        // Resource archives, searched last-first
	SliderDir      string   `yaml:"slider_dir"`      // Slider definitions, relative to DataDir
	Mods           []string `yaml:"mods"`            // Mods whose sliders are loaded, in order
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Morphs: MorphConfig{
			Enabled:        true,
			ParallelShapes: false,
			WeldSeams:      false,
			CacheLimit:     DefaultCacheLimit,
			DataDir:        "Data",
			Archives:       []string{},
			SliderDir:      "F4SE/Plugins/F4EE/Sliders",
			Mods:           []string{},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
