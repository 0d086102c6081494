// Package bodymorph wires the morph cache, weight store, deformation driver
// and slider registry into one explicitly constructed service.
package bodymorph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Faultbox/bodymorph/internal/config"
	"github.com/Faultbox/bodymorph/internal/deform"
	"github.com/Faultbox/bodymorph/internal/logger"
	"github.com/Faultbox/bodymorph/internal/morphcache"
	"github.com/Faultbox/bodymorph/internal/scene"
	"github.com/Faultbox/bodymorph/internal/serialization"
	"github.com/Faultbox/bodymorph/internal/sliders"
	"github.com/Faultbox/bodymorph/internal/strtab"
	"github.com/Faultbox/bodymorph/internal/weights"
	"go.uber.org/zap"
)

// ErrUnknownRecordType is returned by Load for a record it cannot route.
var ErrUnknownRecordType = errors.New("unknown record type")

// Interface is the body morph service. Create one per process with New and
// pass it to consumers.
type Interface struct {
	cfg config.MorphConfig

	strings *strtab.Table
	store   *weights.Store
	cache   *morphcache.Cache
	driver  *deform.Driver
	queue   *deform.UpdateQueue
	sliders *sliders.Registry
	loader  morphcache.Loader
}

// New creates the service. loader supplies morph and slider files; equipment
// may be nil when no host rebuilds equipment.
func New(cfg config.MorphConfig, loader morphcache.Loader, equipment deform.Equipment) *Interface {
	limit := cfg.CacheLimit
	if limit <= 0 {
		limit = morphcache.DefaultLimit
	}

	strings := strtab.New()
	store := weights.NewStore(strings)
	cache := morphcache.New(loader, morphcache.WithLimit(limit))

	return &Interface{
		cfg:     cfg,
		strings: strings,
		store:   store,
		cache:   cache,
		driver:  deform.New(cache, store, deform.WithParallel(cfg.ParallelShapes), deform.WithSeamWelding(cfg.WeldSeams)),
		queue:   deform.NewUpdateQueue(equipment, 0),
		sliders: sliders.NewRegistry(),
		loader:  loader,
	}
}

// Store returns the weight store.
func (b *Interface) Store() *weights.Store { return b.store }

// Cache returns the morph file cache.
func (b *Interface) Cache() *morphcache.Cache { return b.cache }

// Driver returns the deformation driver.
func (b *Interface) Driver() *deform.Driver { return b.driver }

// Queue returns the equipment update queue.
func (b *Interface) Queue() *deform.UpdateQueue { return b.queue }

// Sliders returns the slider registry.
func (b *Interface) Sliders() *sliders.Registry { return b.sliders }

// SetMorph sets a weight. Call UpdateMorphs to make it visible.
func (b *Interface) SetMorph(id weights.CharacterID, sex weights.Sex, morph string, kw weights.KeywordID, value float32) {
	b.store.SetMorph(id, sex, morph, kw, value)
}

// GetMorph returns a weight, or 0.
func (b *Interface) GetMorph(id weights.CharacterID, sex weights.Sex, morph string, kw weights.KeywordID) float32 {
	return b.store.GetMorph(id, sex, morph, kw)
}

// GetKeywords returns the keywords with a weight on morph.
func (b *Interface) GetKeywords(id weights.CharacterID, sex weights.Sex, morph string) []weights.KeywordID {
	return b.store.GetKeywords(id, sex, morph)
}

// GetMorphs returns the morphs with a weight.
func (b *Interface) GetMorphs(id weights.CharacterID, sex weights.Sex) []string {
	return b.store.GetMorphs(id, sex)
}

// RemoveMorphsByName drops every weight of morph.
func (b *Interface) RemoveMorphsByName(id weights.CharacterID, sex weights.Sex, morph string) {
	b.store.RemoveMorphsByName(id, sex, morph)
}

// RemoveMorphsByKeyword drops every weight set under kw.
func (b *Interface) RemoveMorphsByKeyword(id weights.CharacterID, sex weights.Sex, kw weights.KeywordID) {
	b.store.RemoveMorphsByKeyword(id, sex, kw)
}

// ClearMorphs drops a character's weights.
func (b *Interface) ClearMorphs(id weights.CharacterID, sex weights.Sex) {
	b.store.ClearMorphs(id, sex)
}

// CloneMorphs makes target share source's weights.
func (b *Interface) CloneMorphs(sex weights.Sex, source, target weights.CharacterID) {
	b.store.CloneMorphs(sex, source, target)
}

// UpdateMorphs queues a rebuild of the character's morphable equipment.
func (b *Interface) UpdateMorphs(id weights.CharacterID) bool {
	return b.queue.Push(id, true)
}

// ApplyMorphsToShapes deforms the morphable shapes under root.
func (b *Interface) ApplyMorphsToShapes(id weights.CharacterID, sex weights.Sex, root *scene.Node) bool {
	return b.driver.ApplyMorphsToShapes(id, sex, root)
}

// ProcessModel tags a freshly loaded model's morphable shapes.
func (b *Interface) ProcessModel(root *scene.Node) int {
	return b.driver.TagModel(root)
}

// IsMorphable reports whether root holds a morphable shape.
func (b *Interface) IsMorphable(root *scene.Node) bool {
	return deform.IsMorphable(root)
}

// SetCacheLimit changes the morph cache budget.
func (b *Interface) SetCacheLimit(bytes int64) {
	b.cache.SetLimit(bytes)
}

// LoadSliders reloads slider definitions from every configured mod and from
// the loose slider directory.
func (b *Interface) LoadSliders() int {
	b.sliders.Clear()
	n := b.sliders.LoadMods(b.loader, b.cfg.SliderDir, b.cfg.Mods)
	n += b.sliders.LoadLoose(filepath.Join(b.cfg.DataDir, filepath.FromSlash(b.cfg.SliderDir), "Loose"))
	return n
}

// Run processes equipment updates until ctx is done.
func (b *Interface) Run(ctx context.Context) error {
	return b.queue.Run(ctx)
}

// Revert drops all character weights. Cached morph files are kept.
func (b *Interface) Revert() {
	b.store.Revert()
}

// Save writes the string table followed by both weight tables.
func (b *Interface) Save(w serialization.Writer) error {
	if err := b.strings.Save(w); err != nil {
		return fmt.Errorf("saving string table: %w", err)
	}
	if err := b.store.Save(w); err != nil {
		return fmt.Errorf("saving weights: %w", err)
	}
	return nil
}

// Load reads every record of r. Characters that resolve are queued for an
// equipment update. A weight record that fails to decode is logged and
// skipped on its own; an unknown record aborts the load, keeping characters
// accepted before it.
func (b *Interface) Load(r serialization.Reader, resolver serialization.Resolver) error {
	log := logger.Named("bodymorph")
	opts := weights.LoadOptions{Enabled: b.cfg.Enabled, Resolver: resolver}

	var saved map[uint32]string
	loaded, rejected := 0, 0
	for {
		header, err := r.NextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading record: %w", err)
		}

		switch header.Tag {
		case strtab.RecordTag:
			if saved, err = b.strings.Load(r, header.Version); err != nil {
				log.Error("failed to load string table", zap.Error(err))
				return err
			}
		case weights.TagMale, weights.TagFemale:
			sex, _ := weights.SexForTag(header.Tag)
			id, inserted, err := b.store.Load(r, sex, header.Version, saved, opts)
			if err != nil {
				// The rest of the record is skipped by the next NextRecord.
				log.Error("rejected weight record",
					zap.String("record", header.Tag.String()), zap.Error(err))
				rejected++
				continue
			}
			if inserted {
				b.queue.Push(id, false)
				loaded++
			}
		default:
			log.Error("unexpected record in save stream", zap.String("record", header.Tag.String()))
			return fmt.Errorf("%w: %s", ErrUnknownRecordType, header.Tag)
		}
	}

	log.Info("loaded body morphs",
		zap.Int("characters", loaded),
		zap.Int("rejected", rejected),
		zap.Bool("enabled", b.cfg.Enabled))
	return nil
}
