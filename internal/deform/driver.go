// Package deform applies a character's morph weights to the shapes of a
// loaded model.
package deform

import (
	"runtime"
	"strings"
	"sync"

	"github.com/Faultbox/bodymorph/internal/logger"
	"github.com/Faultbox/bodymorph/internal/morphcache"
	"github.com/Faultbox/bodymorph/internal/scene"
	"github.com/Faultbox/bodymorph/internal/weights"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cache resolves morph files.
type Cache interface {
	GetOrLoad(path string) (*morphcache.Entry, error)
	Shrink()
}

// Weights resolves a character's morph weights.
type Weights interface {
	MorphMap(sex weights.Sex, id weights.CharacterID) *weights.MorphMap
}

// MorphableShape is a shape node annotated with its morph source.
type MorphableShape struct {
	Node  *scene.Node
	File  string // MORPH_FILE
	Shape string // MORPH_SHAPE
}

// Driver deforms shapes. It is safe for concurrent use.
type Driver struct {
	cache    Cache
	weights  Weights
	parallel bool
	weld     bool

	// applyMu serializes the weight read and blend of each shape.
	applyMu sync.Mutex
}

// Option configures a Driver.
type Option func(*Driver)

// WithParallel deforms the shapes of one subtree concurrently.
func WithParallel(parallel bool) Option {
	return func(d *Driver) {
		d.parallel = parallel
	}
}

// WithSeamWelding snaps vertices that share a rest position back together
// after blending, so morphs authored on one side of a split seam do not
// tear it open.
func WithSeamWelding(weld bool) Option {
	return func(d *Driver) {
		d.weld = weld
	}
}

// New creates a driver.
func New(cache Cache, w Weights, opts ...Option) *Driver {
	d := &Driver{cache: cache, weights: w}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// morphSource returns the annotations of a morphable shape node.
func morphSource(n *scene.Node) (MorphableShape, bool) {
	if n.Shape == nil {
		return MorphableShape{}, false
	}
	shape, ok := n.Extra(scene.ExtraMorphName)
	if !ok {
		return MorphableShape{}, false
	}
	file, ok := n.Extra(scene.ExtraMorphFile)
	if !ok {
		return MorphableShape{}, false
	}
	return MorphableShape{Node: n, File: file, Shape: shape}, true
}

// MorphableShapes returns every annotated shape under root.
func MorphableShapes(root *scene.Node) []MorphableShape {
	var shapes []MorphableShape
	root.Visit(func(n *scene.Node) bool {
		if ms, ok := morphSource(n); ok {
			shapes = append(shapes, ms)
		}
		return false
	})
	return shapes
}

// IsMorphable reports whether root holds at least one annotated shape.
func IsMorphable(root *scene.Node) bool {
	return root.Visit(func(n *scene.Node) bool {
		_, ok := morphSource(n)
		return ok
	})
}

// ApplyMorphsToShapes deforms every annotated shape under root. It returns
// false only when there is nothing to work on.
func (d *Driver) ApplyMorphsToShapes(id weights.CharacterID, sex weights.Sex, root *scene.Node) bool {
	if root == nil {
		return false
	}
	shapes := MorphableShapes(root)

	if !d.parallel || len(shapes) < 2 {
		for _, ms := range shapes {
			d.ApplyMorphsToShape(id, sex, ms)
		}
		return true
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, ms := range shapes {
		g.Go(func() error {
			d.ApplyMorphsToShape(id, sex, ms)
			return nil
		})
	}
	_ = g.Wait()
	return true
}

// ApplyMorphsToShape blends the character's weights into a copy of the
// shape's vertex buffer and swaps the copy in. It reports whether the
// buffer was replaced.
func (d *Driver) ApplyMorphsToShape(id weights.CharacterID, sex weights.Sex, ms MorphableShape) bool {
	log := logger.Named("deform")

	shape := ms.Node.Shape
	if shape == nil {
		return false
	}
	if shape.Dynamic {
		log.Warn("shape is dynamic and could not be morphed",
			zap.String("shape", ms.Shape), zap.String("file", ms.File))
		return false
	}

	entry, err := d.cache.GetOrLoad(ms.File)
	if err != nil {
		log.Warn("failed to load morph file", zap.String("file", ms.File), zap.Error(err))
		return false
	}
	d.cache.Shrink()

	morphs := entry.File.Shape(ms.Shape)
	if morphs == nil {
		return false
	}

	// No weights means the base mesh stays.
	characterMorphs := d.weights.MorphMap(sex, id)
	if characterMorphs == nil {
		return false
	}

	base := shape.Geometry()
	if base == nil || len(base.Vertices) == 0 {
		return false
	}
	geometry := base.Clone()

	d.applyMu.Lock()
	characterMorphs.Range(func(name string, values *weights.Values) {
		value := values.EffectiveValue()
		if value == 0 {
			return
		}
		morph := morphs.Morph(name)
		if morph == nil {
			return
		}
		if morph.Apply(geometry.Vertices, len(geometry.Vertices), value) {
			log.Warn("morph contained out of bounds vertices",
				zap.String("shape", ms.Shape),
				zap.String("morph", name),
				zap.String("file", ms.File),
				zap.Int("vertices", len(geometry.Vertices)))
		}
	})
	d.applyMu.Unlock()

	if d.weld {
		for dup, canonical := range base.Duplicates() {
			geometry.Vertices[dup] = geometry.Vertices[canonical]
		}
	}

	if old := shape.SetGeometry(geometry); old != nil {
		old.DecRef()
	}
	return true
}

// PrefixMeshPath turns a BODYTRI value into a resource path.
func PrefixMeshPath(relative string) string {
	if relative == "" {
		return ""
	}
	return strings.ToLower("meshes\\" + relative)
}

// TagModel annotates the shapes of a freshly loaded model whose root
// carries a BODYTRI path, so later deformation can find their morphs.
// It returns the number of shapes tagged.
func (d *Driver) TagModel(root *scene.Node) int {
	if root == nil {
		return 0
	}
	relative, ok := root.Extra(scene.ExtraBodyTri)
	if !ok {
		return 0
	}
	path := PrefixMeshPath(relative)

	tagged := 0
	entry, err := d.cache.GetOrLoad(path)
	if err != nil {
		logger.Named("deform").Warn("failed to load body morph file",
			zap.String("model", root.Name), zap.String("file", path), zap.Error(err))
	} else {
		for _, shapeName := range entry.File.ShapeNames() {
			child := root.Find(shapeName)
			if child == nil || child.Shape == nil {
				continue
			}
			child.SetExtra(scene.ExtraMorphFile, path)
			child.SetExtra(scene.ExtraMorphName, shapeName)
			tagged++
		}
	}

	d.cache.Shrink()
	return tagged
}
