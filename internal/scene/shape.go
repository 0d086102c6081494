package scene

import (
	"sync/atomic"

	"github.com/Faultbox/bodymorph/pkg/kdtree"
	"github.com/Faultbox/bodymorph/pkg/math"
)

// Geometry is a vertex buffer with its triangle list. Holders call IncRef
// and DecRef; nothing frees a buffer on its own.
type Geometry struct {
	Vertices  []math.Vec3
	Triangles []uint16

	refs atomic.Int32
}

// NewGeometry creates a buffer with one reference.
func NewGeometry(vertices []math.Vec3, triangles []uint16) *Geometry {
	g := &Geometry{Vertices: vertices, Triangles: triangles}
	g.refs.Store(1)
	return g
}

// IncRef adds a reference.
func (g *Geometry) IncRef() {
	g.refs.Add(1)
}

// DecRef drops a reference and returns the count left.
func (g *Geometry) DecRef() int32 {
	return g.refs.Add(-1)
}

// Refs returns the current reference count.
func (g *Geometry) Refs() int32 {
	return g.refs.Load()
}

// VertexCount returns the number of live vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Vertices)
}

// Clone copies the vertices and shares the triangle list. The clone starts
// with one reference.
func (g *Geometry) Clone() *Geometry {
	vertices := make([]math.Vec3, len(g.Vertices))
	copy(vertices, g.Vertices)
	return NewGeometry(vertices, g.Triangles)
}

// TriShape is a renderable triangle shape.
type TriShape struct {
	// Dynamic shapes are skinned on the GPU and cannot take CPU morphs.
	Dynamic bool

	geometry atomic.Pointer[Geometry]
}

// NewTriShape creates a shape over g.
func NewTriShape(g *Geometry) *TriShape {
	s := &TriShape{}
	s.geometry.Store(g)
	return s
}

// Geometry returns the active buffer.
func (s *TriShape) Geometry() *Geometry {
	return s.geometry.Load()
}

// SetGeometry installs g and returns the previous buffer. The caller owns
// the previous buffer's reference.
func (s *TriShape) SetGeometry(g *Geometry) *Geometry {
	return s.geometry.Swap(g)
}

// Duplicates returns, for every vertex that shares its position with an
// earlier one, the index of that earlier vertex. Split seams show up here.
func (g *Geometry) Duplicates() map[int]int {
	m := kdtree.NewMatcher(g.Vertices)
	dups := make(map[int]int, len(m.Matches()))
	for _, match := range m.Matches() {
		dups[match.Point.Index] = match.Existing.Index
	}
	return dups
}
