// morphtool is a CLI utility for inspecting body morph data: morph files,
// resource archives, saved weights and slider definitions.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/bodymorph/internal/bodymorph"
	"github.com/Faultbox/bodymorph/internal/config"
	"github.com/Faultbox/bodymorph/internal/logger"
	"github.com/Faultbox/bodymorph/internal/serialization"
	"github.com/Faultbox/bodymorph/internal/sliders"
	"github.com/Faultbox/bodymorph/internal/weights"
	"github.com/Faultbox/bodymorph/pkg/tri"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	level := os.Getenv("MORPHTOOL_LOG")
	if level == "" {
		level = "warn"
	}
	if err := logger.Init(level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "morphs":
		cmdMorphs(args)
	case "pack":
		cmdPack(args)
	case "list", "ls":
		cmdList(args)
	case "extract", "x":
		cmdExtract(args)
	case "weights":
		cmdWeights(args)
	case "sliders":
		cmdSliders(args)
	case "check":
		cmdCheck(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`morphtool - body morph data utility

Usage:
  morphtool <command> [options]

Commands:
  info <file.tri>                        Show morph file summary
  morphs <file.tri> <shape>              List a shape's morphs
  pack [-C dir] <out.bmp> <paths...>     Build a resource archive
  list <archive> [pattern]               List archive files
  extract <archive> <path> [output]      Extract file(s) from an archive
  weights [-strict] <save.dat>           Dump saved character weights
  sliders <file.json|dir>                Show slider definitions
  check [flags] <paths...>               Load sliders and morph files per config
  config [-o path]                       Write a default config file

Set MORPHTOOL_LOG=debug for verbose logging.

Examples:
  morphtool info meshes/actors/character/characterassets/femalebody.tri
  morphtool pack -C Data morphs.bmp Data/meshes
  morphtool extract morphs.bmp "*.tri" ./out`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fatalf("Usage: morphtool info <file.tri>\n")
	}

	file, err := tri.ParseFile(args[0])
	if err != nil {
		fatalf("Error: %v\n", err)
	}

	format := "TRI (full)"
	if file.Packed {
		format = "TRIP (packed)"
	}

	fmt.Printf("File:    %s\n", args[0])
	fmt.Printf("Format:  %s\n", format)
	fmt.Printf("Size:    %d bytes\n", file.Size)
	fmt.Printf("Shapes:  %d\n", len(file.Shapes))
	fmt.Printf("Morphs:  %d\n", file.MorphCount())
	fmt.Printf("Deltas:  %d\n", file.DeltaCount())
	fmt.Println()

	for _, name := range file.ShapeNames() {
		fmt.Printf("  %-40s %d morphs\n", name, len(file.Shapes[name].Morphs))
	}

	if len(file.Warnings) > 0 {
		fmt.Println()
		fmt.Println("Warnings:")
		for _, w := range file.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}
}

func cmdMorphs(args []string) {
	if len(args) < 2 {
		fatalf("Usage: morphtool morphs <file.tri> <shape>\n")
	}

	file, err := tri.ParseFile(args[0])
	if err != nil {
		fatalf("Error: %v\n", err)
	}

	shape := file.Shape(args[1])
	if shape == nil {
		fatalf("Shape not found: %s\n", args[1])
	}

	for _, name := range shape.Names() {
		switch m := shape.Morph(name).(type) {
		case *tri.PackedMorph:
			fmt.Printf("%-40s %6d deltas  x%g\n", name, m.Len(), m.Multiplier)
		default:
			fmt.Printf("%-40s %6d deltas\n", name, m.Len())
		}
	}
}

func cmdWeights(args []string) {
	fs := flag.NewFlagSet("weights", flag.ExitOnError)
	strict := fs.Bool("strict", false, "Drop every reference instead of keeping ids as saved")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatalf("Usage: morphtool weights [-strict] <save.dat>\n")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	defer f.Close()

	r, err := serialization.NewStreamReader(f)
	if err != nil {
		fatalf("Error: %v\n", err)
	}

	cfg := config.Default().Morphs
	cfg.Enabled = true
	svc := bodymorph.New(cfg, nil, nil)
	if err := svc.Load(r, &serialization.MapResolver{Permissive: !*strict}); err != nil {
		fatalf("Error: %v\n", err)
	}

	store := svc.Store()
	for _, sex := range []weights.Sex{weights.Male, weights.Female} {
		ids := store.Characters(sex)
		fmt.Printf("%s: %d characters\n", sex, len(ids))
		for _, id := range ids {
			fmt.Printf("  %08X\n", uint32(id))
			store.MorphMap(sex, id).Range(func(morph string, values *weights.Values) {
				fmt.Printf("    %-32s %.3f\n", morph, values.EffectiveValue())
				for _, kw := range values.Keywords() {
					fmt.Printf("      %08X = %.3f\n", uint32(kw), values.Get(kw))
				}
			})
		}
	}
}

func cmdSliders(args []string) {
	if len(args) < 1 {
		fatalf("Usage: morphtool sliders <file.json|dir>\n")
	}

	reg := sliders.NewRegistry()
	info, err := os.Stat(args[0])
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	if info.IsDir() {
		reg.LoadLoose(args[0])
	} else if _, err := reg.LoadFile(args[0]); err != nil {
		fatalf("Error: %v\n", err)
	}

	for _, sex := range []weights.Sex{weights.Male, weights.Female} {
		fmt.Printf("%s: %d sliders\n", sex, reg.Len(sex))
		reg.ForEachSlider(sex, func(s sliders.Slider) {
			fmt.Printf("  %4d %-32s %-24s [%g, %g] step %g\n", s.Sort, s.Name, s.Morph, s.Min, s.Max, s.Interval)
		})
	}
}
