// Package sliders loads the slider definitions a UI uses to expose morphs.
//
// Slider files are JSON arrays:
//
//	[{"name": "Thin", "morph": "Thin", "gender": 1,
//	  "minimum": 0, "maximum": 1, "interval": 0.01, "sort": 10}]
package sliders

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Faultbox/bodymorph/internal/logger"
	"github.com/Faultbox/bodymorph/internal/weights"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Slider describes one UI control bound to a morph.
type Slider struct {
	Name     string
	Morph    string
	Sex      weights.Sex
	Sort     int
	Min      float32
	Max      float32
	Interval float32
}

// entry is the on-disk form of a slider.
type entry struct {
	Name     string  `yaml:"name"`
	Morph    string  `yaml:"morph"`
	Gender   int     `yaml:"gender"`
	Minimum  float32 `yaml:"minimum"`
	Maximum  float32 `yaml:"maximum"`
	Interval float32 `yaml:"interval"`
	Sort     int     `yaml:"sort"`
}

// Parse decodes a slider file. Entries for a gender other than 0 (male) or
// 1 (female) are skipped.
func Parse(data []byte) ([]Slider, error) {
	// JSON strings cannot hold raw tabs, so every tab is layout and YAML
	// rejects tabs as indentation.
	data = bytes.ReplaceAll(data, []byte{'\t'}, []byte{' '})

	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing slider file: %w", err)
	}

	sliders := make([]Slider, 0, len(entries))
	for _, e := range entries {
		if e.Gender != 0 && e.Gender != 1 {
			continue
		}
		sliders = append(sliders, Slider{
			Name:     e.Name,
			Morph:    e.Morph,
			Sex:      weights.Sex(e.Gender),
			Sort:     e.Sort,
			Min:      e.Minimum,
			Max:      e.Maximum,
			Interval: e.Interval,
		})
	}
	return sliders, nil
}

// Loader reads a resource by relative path.
type Loader interface {
	Load(path string) ([]byte, error)
}

// Registry holds sliders per sex, keyed by morph. A later definition of the
// same morph replaces the earlier one.
type Registry struct {
	mu     sync.RWMutex
	tables [2]map[string]Slider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.tables[weights.Male] = make(map[string]Slider)
	r.tables[weights.Female] = make(map[string]Slider)
	return r
}

// LoadData adds the sliders in data. source names the data in logs.
func (r *Registry) LoadData(data []byte, source string) (int, error) {
	sliders, err := Parse(data)
	if err != nil {
		logger.Named("sliders").Error("failed to parse slider file",
			zap.String("file", source), zap.Error(err))
		return 0, err
	}

	r.mu.Lock()
	for _, s := range sliders {
		r.tables[s.Sex][s.Morph] = s
	}
	r.mu.Unlock()

	logger.Named("sliders").Info("loaded sliders",
		zap.String("file", source), zap.Int("count", len(sliders)))
	return len(sliders), nil
}

// LoadFile adds the sliders of a file on disk.
func (r *Registry) LoadFile(filePath string) (int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}
	return r.LoadData(data, filePath)
}

// LoadMods adds <dir>/<mod>/sliders.json for each mod, in order, through
// loader. Mods without a slider file are skipped.
func (r *Registry) LoadMods(loader Loader, dir string, mods []string) int {
	total := 0
	for _, mod := range mods {
		p := path.Join(filepath.ToSlash(dir), mod, "sliders.json")
		data, err := loader.Load(p)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Named("sliders").Warn("failed to read slider file",
					zap.String("file", p), zap.Error(err))
			}
			continue
		}
		n, _ := r.LoadData(data, p)
		total += n
	}
	return total
}

// LoadLoose adds every *.json file in dir, in lowercased path order.
// A missing directory adds nothing.
func (r *Registry) LoadLoose(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0
	}
	sort.Slice(matches, func(i, j int) bool {
		return strings.ToLower(matches[i]) < strings.ToLower(matches[j])
	})

	total := 0
	for _, m := range matches {
		n, err := r.LoadFile(m)
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

// Clear removes every slider.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[weights.Male] = make(map[string]Slider)
	r.tables[weights.Female] = make(map[string]Slider)
}

// Len returns the number of sliders for sex.
func (r *Registry) Len(sex weights.Sex) int {
	if !sex.Valid() {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables[sex])
}

// ForEachSlider calls fn for every slider of sex, ordered by Sort then
// morph name.
func (r *Registry) ForEachSlider(sex weights.Sex, fn func(Slider)) {
	if !sex.Valid() {
		return
	}
	r.mu.RLock()
	list := make([]Slider, 0, len(r.tables[sex]))
	for _, s := range r.tables[sex] {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Sort != list[j].Sort {
			return list[i].Sort < list[j].Sort
		}
		return list[i].Morph < list[j].Morph
	})
	for _, s := range list {
		fn(s)
	}
}
