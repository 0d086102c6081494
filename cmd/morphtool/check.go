package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/Faultbox/bodymorph/internal/assets"
	"github.com/Faultbox/bodymorph/internal/bodymorph"
	"github.com/Faultbox/bodymorph/internal/config"
	"github.com/Faultbox/bodymorph/internal/logger"
)

// cmdCheck loads the configured data set the way the runtime does and
// reports what resolved.
func cmdCheck(args []string) {
	fset := flag.NewFlagSet("check", flag.ExitOnError)
	flags := config.RegisterFlags(fset)
	fset.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatalf("Error: %v\n", err)
	}

	mgr := assets.NewManager(cfg.Morphs.DataDir)
	defer mgr.Close()
	for _, name := range cfg.Morphs.Archives {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Morphs.DataDir, path)
		}
		if err := mgr.AddArchive(path); err != nil {
			fatalf("Error: %v\n", err)
		}
	}

	svc := bodymorph.New(cfg.Morphs, mgr, nil)
	fmt.Printf("Sliders: %d\n", svc.LoadSliders())

	failed := 0
	for _, path := range fset.Args() {
		entry, err := svc.Cache().GetOrLoad(path)
		if err != nil {
			fmt.Printf("  FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("  ok   %s (%d shapes, %d morphs)\n", entry.Path, len(entry.File.Shapes), entry.File.MorphCount())
	}
	svc.Cache().Shrink()

	hits, misses, evictions := svc.Cache().Stats()
	fmt.Printf("Cache:   %d files, %d / %d bytes\n", svc.Cache().Len(), svc.Cache().Bytes(), svc.Cache().Limit())
	fmt.Printf("Stats:   %d hits, %d misses, %d evictions\n", hits, misses, evictions)

	if failed > 0 {
		fatalf("%d files failed to load\n", failed)
	}
}

func cmdConfig(args []string) {
	fset := flag.NewFlagSet("config", flag.ExitOnError)
	out := fset.String("o", "", "Output path (default: user config directory)")
	fset.Parse(args)

	cfg := config.Default()
	if *out == "" {
		if err := cfg.Save(); err != nil {
			fatalf("Error: %v\n", err)
		}
		fmt.Printf("Wrote %s\n", filepath.Join(config.ConfigDir(), config.FileName))
		return
	}
	if err := cfg.SaveTo(*out); err != nil {
		fatalf("Error: %v\n", err)
	}
	fmt.Printf("Wrote %s\n", *out)
}
