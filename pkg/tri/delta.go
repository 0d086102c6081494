package tri

import "github.com/Faultbox/bodymorph/pkg/math"

// Morph is a named set of vertex deltas in one of the two on-disk encodings.
type Morph interface {
	// Apply adds the deltas scaled by weight into vertices. Deltas whose
	// index is not below vertexCount are skipped; the return value reports
	// whether any were.
	Apply(vertices []math.Vec3, vertexCount int, weight float32) bool

	// Len returns the number of stored deltas.
	Len() int
}

// FullDelta is a full-precision vertex displacement.
type FullDelta struct {
	Index  uint16
	Offset math.Vec3
}

// PackedDelta is a quantized vertex displacement. The real offset is the
// integer components times the owning morph's multiplier.
type PackedDelta struct {
	Index   uint16
	X, Y, Z int16
}

// FullMorph stores full-precision deltas (TRI format).
type FullMorph struct {
	Deltas []FullDelta
}

// PackedMorph stores quantized deltas sharing one multiplier (TRIP format).
type PackedMorph struct {
	Multiplier float32
	Deltas     []PackedDelta
}

// Apply implements Morph.
func (m *FullMorph) Apply(vertices []math.Vec3, vertexCount int, weight float32) bool {
	if len(vertices) == 0 {
		return false
	}
	limit := clampCount(vertexCount, len(vertices))

	outOfBounds := false
	for i := range m.Deltas {
		d := &m.Deltas[i]
		if int(d.Index) >= limit {
			outOfBounds = true
			continue
		}
		vertices[d.Index] = vertices[d.Index].Add(d.Offset.Scale(weight))
	}
	return outOfBounds
}

// Len implements Morph.
func (m *FullMorph) Len() int {
	return len(m.Deltas)
}

// Apply implements Morph.
func (m *PackedMorph) Apply(vertices []math.Vec3, vertexCount int, weight float32) bool {
	if len(vertices) == 0 {
		return false
	}
	limit := clampCount(vertexCount, len(vertices))

	outOfBounds := false
	for i := range m.Deltas {
		d := &m.Deltas[i]
		if int(d.Index) >= limit {
			outOfBounds = true
			continue
		}
		vertices[d.Index] = vertices[d.Index].Add(d.Offset(m.Multiplier).Scale(weight))
	}
	return outOfBounds
}

// Len implements Morph.
func (m *PackedMorph) Len() int {
	return len(m.Deltas)
}

// Offset returns the decoded displacement of d under multiplier.
func (d PackedDelta) Offset(multiplier float32) math.Vec3 {
	return math.Vec3{
		X: float32(d.X) * multiplier,
		Y: float32(d.Y) * multiplier,
		Z: float32(d.Z) * multiplier,
	}
}

// clampCount never lets a caller-supplied count address past the buffer.
func clampCount(vertexCount, bufLen int) int {
	if vertexCount > bufLen {
		return bufLen
	}
	return vertexCount
}
