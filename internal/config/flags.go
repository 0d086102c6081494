package config

import "flag"

// Flags holds command-line overrides. Zero values leave the loaded
// configuration untouched.
type Flags struct {
	Config     string
	Debug      bool
	CacheLimit int64
	Parallel   bool
	DataDir    string
}

// RegisterFlags binds the override flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.Int64Var(&f.CacheLimit, "cache-limit", 0, "Morph cache budget in bytes")
	fs.BoolVar(&f.Parallel, "parallel", false, "Deform shapes concurrently")
	fs.StringVar(&f.DataDir, "data", "", "Loose file data directory")
	return f
}

func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.CacheLimit > 0 {
		cfg.Morphs.CacheLimit = f.CacheLimit
	}
	if f.Parallel {
		cfg.Morphs.ParallelShapes = true
	}
	if f.DataDir != "" {
		cfg.Morphs.DataDir = f.DataDir
	}
}
