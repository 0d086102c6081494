package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/bodymorph/pkg/archive"
)

func cmdPack(args []string) {
	fset := flag.NewFlagSet("pack", flag.ExitOnError)
	base := fset.String("C", ".", "Directory archive names are relative to")
	fset.Parse(args)

	if fset.NArg() < 2 {
		fatalf("Usage: morphtool pack [-C dir] <out.bmp> <paths...>\n")
	}

	var files []archive.File
	for _, root := range fset.Args()[1:] {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(*base, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			files = append(files, archive.File{Name: filepath.ToSlash(rel), Data: data})
			return nil
		})
		if err != nil {
			fatalf("Error: %v\n", err)
		}
	}

	if err := archive.Create(fset.Arg(0), files); err != nil {
		fatalf("Error: %v\n", err)
	}
	fmt.Printf("Packed %d files into %s\n", len(files), fset.Arg(0))
}

func cmdList(args []string) {
	fset := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fset.Int("n", 0, "Limit output to N files (0 = all)")
	fset.Parse(args)

	if fset.NArg() < 1 {
		fatalf("Usage: morphtool list <archive> [pattern]\n")
	}

	a, err := archive.Open(fset.Arg(0))
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	defer a.Close()

	files := a.List()
	sort.Strings(files)

	pattern := ""
	if fset.NArg() > 1 {
		pattern = strings.ToLower(fset.Arg(1))
	}

	count := 0
	for _, f := range files {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, filepath.Base(f))
			if !matched && !strings.Contains(f, pattern) {
				continue
			}
		}
		entry, _ := a.Stat(f)
		fmt.Printf("%10d  %s\n", entry.UncompressedSize, f)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", count)
	}
}

func cmdExtract(args []string) {
	fset := flag.NewFlagSet("extract", flag.ExitOnError)
	fset.Parse(args)

	if fset.NArg() < 2 {
		fatalf("Usage: morphtool extract <archive> <path> [output_dir]\n")
	}

	filePath := fset.Arg(1)
	outputDir := "."
	if fset.NArg() > 2 {
		outputDir = fset.Arg(2)
	}

	a, err := archive.Open(fset.Arg(0))
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	defer a.Close()

	if strings.Contains(filePath, "*") {
		extractPattern(a, filePath, outputDir)
		return
	}

	data, err := a.Read(filePath)
	if err != nil {
		fatalf("Error reading file: %v\n", err)
	}

	outputPath := filepath.Join(outputDir, filepath.Base(filePath))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		fatalf("Error creating directory: %v\n", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		fatalf("Error writing file: %v\n", err)
	}

	fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, len(data))
}

func extractPattern(a *archive.Archive, pattern, outputDir string) {
	pattern = strings.ToLower(pattern)

	extracted := 0
	for _, f := range a.List() {
		matched, _ := filepath.Match(pattern, filepath.Base(f))
		if !matched {
			continue
		}

		data, err := a.Read(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", f, err)
			continue
		}

		// Preserve directory structure
		outputPath := filepath.Join(outputDir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			continue
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Extracted: %s\n", outputPath)
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
}
