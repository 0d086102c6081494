package tri

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Faultbox/bodymorph/pkg/encoding"
	vmath "github.com/Faultbox/bodymorph/pkg/math"
)

// Parse parses a TRI or TRIP morph file from raw bytes.
func Parse(data []byte) (*File, error) {
	r := &reader{r: bytes.NewReader(data), total: int64(len(data))}

	magic, err := r.u32()
	if err != nil {
		return nil, ErrTruncatedData
	}

	file := &File{Shapes: make(map[string]*ShapeMorphs)}
	switch magic {
	case MagicFull:
	case MagicPacked:
		file.Packed = true
	default:
		return nil, fmt.Errorf("%w: got 0x%08X", ErrInvalidMagic, magic)
	}

	// Count widths differ between the two formats.
	shapeCount, err := r.count(file.Packed)
	if err != nil {
		return nil, fmt.Errorf("%w: reading shape count", ErrTruncatedData)
	}

	for i := uint32(0); i < shapeCount; i++ {
		name, shape, err := parseShape(r, file)
		if err != nil {
			return nil, fmt.Errorf("parsing shape %d: %w", i, err)
		}
		if _, ok := file.Shapes[name]; ok {
			file.warn(WarnDuplicateShape, name, "", r.offset())
			continue
		}
		file.Shapes[name] = shape
	}

	file.Size = r.offset()
	return file, nil
}

// ParseFile parses a morph file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading morph file: %w", err)
	}
	return Parse(data)
}

// ParseReader parses a morph file from a stream.
func ParseReader(src io.Reader) (*File, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading morph stream: %w", err)
	}
	return Parse(data)
}

// parseShape parses one sub-mesh block.
func parseShape(r *reader, file *File) (string, *ShapeMorphs, error) {
	name, err := r.name()
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading shape name", ErrTruncatedData)
	}

	// Legacy block size, present in TRI only and never validated
	if !file.Packed {
		if _, err := r.u32(); err != nil {
			return "", nil, fmt.Errorf("%w: reading shape block size", ErrTruncatedData)
		}
	}

	morphCount, err := r.count(file.Packed)
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading morph count", ErrTruncatedData)
	}

	shape := &ShapeMorphs{Morphs: make(map[string]Morph)}
	for j := uint32(0); j < morphCount; j++ {
		morphName, morph, err := parseMorph(r, file, name)
		if err != nil {
			return "", nil, fmt.Errorf("parsing morph %d of %q: %w", j, name, err)
		}
		if _, ok := shape.Morphs[morphName]; ok {
			file.warn(WarnDuplicateMorph, name, morphName, r.offset())
			continue
		}
		shape.Morphs[morphName] = morph
	}

	return name, shape, nil
}

// parseMorph parses one morph block and its deltas.
func parseMorph(r *reader, file *File, shapeName string) (string, Morph, error) {
	raw, err := r.rawName()
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading morph name", ErrTruncatedData)
	}
	name := encoding.DecodeName(raw)
	if len(raw) == 0 {
		file.warn(WarnEmptyName, shapeName, name, r.offset())
	}

	if !file.Packed {
		if _, err := r.u32(); err != nil {
			return "", nil, fmt.Errorf("%w: reading morph block size", ErrTruncatedData)
		}
	}

	var vertexCount uint32
	var multiplier float32
	if file.Packed {
		if multiplier, err = r.f32(); err != nil {
			return "", nil, fmt.Errorf("%w: reading multiplier", ErrTruncatedData)
		}
		count, err := r.u16()
		if err != nil {
			return "", nil, fmt.Errorf("%w: reading vertex count", ErrTruncatedData)
		}
		vertexCount = uint32(count)
	} else {
		if vertexCount, err = r.u32(); err != nil {
			return "", nil, fmt.Errorf("%w: reading vertex count", ErrTruncatedData)
		}
	}

	if vertexCount == 0 {
		file.warn(WarnNoVertices, shapeName, name, r.offset())
	}
	if file.Packed && multiplier == 0 {
		file.warn(WarnZeroMultiplier, shapeName, name, r.offset())
	}
	if vertexCount > MaxVertices {
		return "", nil, fmt.Errorf("%w: %d vertices on morph %q", ErrTooManyVertices, vertexCount, name)
	}

	// Each delta must fit in what is left of the buffer before allocating.
	recordSize := int64(16)
	if file.Packed {
		recordSize = 8
	}
	if int64(vertexCount)*recordSize > int64(r.r.Len()) {
		return "", nil, fmt.Errorf("%w: %d deltas on morph %q", ErrTruncatedData, vertexCount, name)
	}

	if file.Packed {
		morph := &PackedMorph{Multiplier: multiplier, Deltas: make([]PackedDelta, vertexCount)}
		for k := range morph.Deltas {
			d := &morph.Deltas[k]
			if err := binary.Read(r, binary.LittleEndian, d); err != nil {
				return "", nil, fmt.Errorf("%w: reading packed delta %d", ErrTruncatedData, k)
			}
		}
		return name, morph, nil
	}

	morph := &FullMorph{Deltas: make([]FullDelta, vertexCount)}
	for k := range morph.Deltas {
		var rec struct {
			Index   uint32
			X, Y, Z float32
		}
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return "", nil, fmt.Errorf("%w: reading delta %d", ErrTruncatedData, k)
		}
		// The index is stored as 32 bits but only the low 16 address a vertex.
		morph.Deltas[k] = FullDelta{
			Index:  uint16(rec.Index),
			Offset: vmath.Vec3{X: rec.X, Y: rec.Y, Z: rec.Z},
		}
	}
	return name, morph, nil
}

func (f *File) warn(kind WarningKind, shape, morph string, offset int64) {
	f.Warnings = append(f.Warnings, Warning{Kind: kind, Shape: shape, Morph: morph, Offset: offset})
}

// reader wraps a bytes.Reader with the little-endian field helpers used by
// both formats.
type reader struct {
	r     *bytes.Reader
	total int64
}

func (r *reader) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

// offset returns the number of bytes consumed so far.
func (r *reader) offset() int64 {
	return r.total - int64(r.r.Len())
}

func (r *reader) u16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (r *reader) u32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	return math.Float32frombits(v), err
}

// count reads a 16-bit (packed) or 32-bit (full) element count.
func (r *reader) count(packed bool) (uint32, error) {
	if packed {
		v, err := r.u16()
		return uint32(v), err
	}
	return r.u32()
}

// rawName reads a length-prefixed name field.
func (r *reader) rawName() ([]byte, error) {
	size, err := r.r.ReadByte()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *reader) name() (string, error) {
	raw, err := r.rawName()
	if err != nil {
		return "", err
	}
	return encoding.DecodeName(raw), nil
}
