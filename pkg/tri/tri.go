// Package tri provides parsers for TRI and TRIP morph files.
//
// A morph file lists, per named sub-mesh ("shape"), a set of named morphs,
// each a list of per-vertex displacements. TRI stores full-precision
// float offsets; TRIP stores int16 offsets scaled by a per-morph multiplier.
package tri

import (
	"errors"
	"fmt"
	"sort"
)

// Magic values, read as a little-endian uint32.
const (
	MagicFull   uint32 = 0x54524900 // 'TRI\0'
	MagicPacked uint32 = 0x54524950 // 'TRIP'
)

// MaxVertices is the largest vertex count a single morph may address.
const MaxVertices = 1<<16 - 1

// Morph file errors.
var (
	ErrInvalidMagic    = errors.New("invalid morph file magic: expected 'TRI\\0' or 'TRIP'")
	ErrTruncatedData   = errors.New("truncated morph file data")
	ErrTooManyVertices = errors.New("morph vertex count exceeds 16-bit index space")
)

// WarningKind classifies a non-fatal integrity problem found while parsing.
type WarningKind uint8

const (
	WarnEmptyName      WarningKind = iota // Morph name has zero length
	WarnNoVertices                        // Morph has a vertex count of zero
	WarnZeroMultiplier                    // Packed morph multiplier is exactly zero
	WarnDuplicateShape                    // Shape name seen before; the first one is kept
	WarnDuplicateMorph                    // Morph name seen before in its shape; the first one is kept
)

// String returns a human-readable warning kind.
func (k WarningKind) String() string {
	switch k {
	case WarnEmptyName:
		return "empty morph name"
	case WarnNoVertices:
		return "morph with no vertices"
	case WarnZeroMultiplier:
		return "morph with zero multiplier"
	case WarnDuplicateShape:
		return "duplicate shape"
	case WarnDuplicateMorph:
		return "duplicate morph"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Warning is an integrity problem that did not stop the parse.
type Warning struct {
	Kind   WarningKind
	Shape  string
	Morph  string
	Offset int64 // Byte offset in the file after the field was read
}

// String formats the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("%s: morph %q on %q at 0x%08X", w.Kind, w.Morph, w.Shape, w.Offset)
}

// ShapeMorphs maps morph names to morph data for one sub-mesh.
// Names are case-sensitive.
type ShapeMorphs struct {
	Morphs map[string]Morph
}

// Morph returns the morph with the given name, or nil if not found.
func (s *ShapeMorphs) Morph(name string) Morph {
	if s == nil {
		return nil
	}
	return s.Morphs[name]
}

// Names returns the morph names in sorted order.
func (s *ShapeMorphs) Names() []string {
	names := make([]string, 0, len(s.Morphs))
	for name := range s.Morphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File represents a parsed morph file. It is immutable after parsing.
type File struct {
	Packed   bool                    // True for TRIP
	Shapes   map[string]*ShapeMorphs // Sub-mesh name -> morphs
	Size     int64                   // Bytes consumed while decoding
	Warnings []Warning               // Non-fatal integrity problems
}

// Shape returns the morph set for a sub-mesh, or nil if not found.
func (f *File) Shape(name string) *ShapeMorphs {
	return f.Shapes[name]
}

// ShapeNames returns the sub-mesh names in sorted order.
func (f *File) ShapeNames() []string {
	names := make([]string, 0, len(f.Shapes))
	for name := range f.Shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MorphCount returns the total number of morphs across all shapes.
func (f *File) MorphCount() int {
	total := 0
	for _, s := range f.Shapes {
		total += len(s.Morphs)
	}
	return total
}

// DeltaCount returns the total number of vertex deltas across all morphs.
func (f *File) DeltaCount() int {
	total := 0
	for _, s := range f.Shapes {
		for _, m := range s.Morphs {
			total += m.Len()
		}
	}
	return total
}
