// Package serialization frames save data as a stream of typed, versioned
// records.
//
// The host save system only needs to satisfy Writer and Reader. StreamWriter
// and StreamReader implement both over a plain byte stream:
//
//	stream header: magic "BMSV" u32, format version u32
//	per record:    tag u32, version u32, length u32, payload [length]byte
//
// All integers are little-endian.
package serialization

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Tag identifies a record type as a four-character code.
type Tag uint32

// NewTag builds a tag from a four-character code such as "MRPM".
func NewTag(code string) Tag {
	var t Tag
	for i := 0; i < 4 && i < len(code); i++ {
		t = t<<8 | Tag(code[i])
	}
	return t
}

// String returns the four-character code.
func (t Tag) String() string {
	b := []byte{byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return fmt.Sprintf("0x%08X", uint32(t))
		}
	}
	return string(b)
}

// Header describes one record.
type Header struct {
	Tag     Tag
	Version uint32
	Length  uint32
}

// Stream errors.
var (
	ErrNoRecord      = errors.New("no record open")
	ErrRecordOverrun = errors.New("read past end of record")
	ErrBadHeader     = errors.New("invalid save stream header")
)

// Writer receives records. Write appends to the most recently opened record.
type Writer interface {
	OpenRecord(tag Tag, version uint32) error
	Write(p []byte) (int, error)
}

// Reader yields records. NextRecord returns io.EOF at the end of the stream
// and skips any unread payload of the previous record. Read never crosses
// the current record's payload.
type Reader interface {
	NextRecord() (Header, error)
	Read(p []byte) (int, error)
}

// WriteU16 writes a little-endian uint16.
func WriteU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteU32 writes a little-endian uint32.
func WriteU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteU64 writes a little-endian uint64.
func WriteU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteF32 writes a little-endian float32.
func WriteF32(w io.Writer, v float32) error {
	return WriteU32(w, math.Float32bits(v))
}

// ReadU16 reads a little-endian uint16.
func ReadU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadU32 reads a little-endian uint32.
func ReadU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadU64 reads a little-endian uint64.
func ReadU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadF32 reads a little-endian float32.
func ReadF32(r io.Reader) (float32, error) {
	v, err := ReadU32(r)
	return math.Float32frombits(v), err
}
