package tri

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/bodymorph/pkg/encoding"
)

// Encode serializes f in the format selected by f.Packed. Shapes and morphs
// are written in sorted name order. Every morph must match the format:
// *FullMorph for TRI, *PackedMorph for TRIP.
func Encode(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	magic := MagicFull
	if f.Packed {
		magic = MagicPacked
	}
	if err := binary.Write(bw, le, magic); err != nil {
		return err
	}
	if err := putCount(bw, f.Packed, len(f.Shapes)); err != nil {
		return err
	}

	for _, shapeName := range f.ShapeNames() {
		shape := f.Shapes[shapeName]
		if err := putName(bw, shapeName); err != nil {
			return err
		}
		if !f.Packed {
			binary.Write(bw, le, uint32(0)) // block size
		}
		if err := putCount(bw, f.Packed, len(shape.Morphs)); err != nil {
			return err
		}

		for _, morphName := range shape.Names() {
			if err := putName(bw, morphName); err != nil {
				return err
			}
			morph := shape.Morphs[morphName]
			if morph.Len() > MaxVertices {
				return fmt.Errorf("%w: morph %q", ErrTooManyVertices, morphName)
			}
			switch m := morph.(type) {
			case *FullMorph:
				if f.Packed {
					return fmt.Errorf("morph %q: full morph in packed file", morphName)
				}
				binary.Write(bw, le, uint32(0)) // block size
				binary.Write(bw, le, uint32(len(m.Deltas)))
				for _, d := range m.Deltas {
					binary.Write(bw, le, uint32(d.Index))
					binary.Write(bw, le, d.Offset.X)
					binary.Write(bw, le, d.Offset.Y)
					binary.Write(bw, le, d.Offset.Z)
				}
			case *PackedMorph:
				if !f.Packed {
					return fmt.Errorf("morph %q: packed morph in full file", morphName)
				}
				binary.Write(bw, le, m.Multiplier)
				binary.Write(bw, le, uint16(len(m.Deltas)))
				if err := binary.Write(bw, le, m.Deltas); err != nil {
					return err
				}
			default:
				return fmt.Errorf("morph %q: unsupported type %T", morphName, m)
			}
		}
	}

	return bw.Flush()
}

// WriteFile encodes f to path.
func WriteFile(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func putCount(w io.Writer, packed bool, n int) error {
	if packed {
		if n > MaxVertices {
			return fmt.Errorf("count %d does not fit a packed file", n)
		}
		return binary.Write(w, binary.LittleEndian, uint16(n))
	}
	return binary.Write(w, binary.LittleEndian, uint32(n))
}

func putName(w *bufio.Writer, name string) error {
	raw := encoding.EncodeName(name)
	if len(raw) > 255 {
		return fmt.Errorf("name %q longer than 255 bytes", name)
	}
	w.WriteByte(byte(len(raw)))
	_, err := w.Write(raw)
	return err
}
