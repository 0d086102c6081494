// Package archive reads and writes resource archives that ship morph files
// and other mesh resources.
//
// Layout: a fixed header, the file payloads, then a zlib-compressed file
// table at Header.TableOffset. Payloads are zlib-compressed unless
// compression did not make them smaller.
package archive

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/bodymorph/pkg/encoding"
)

const (
	archiveMagic   = "BMORPHPK"
	archiveVersion = 0x100
	headerSize     = 20
)

// Entry flags.
const (
	FlagFile uint8 = 0x01
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid archive magic")
	ErrUnsupportedVersion = errors.New("unsupported archive version")
	ErrNotFound           = errors.New("file not found in archive")
	ErrCorruptTable       = errors.New("corrupt archive file table")
)

// Archive represents an opened resource archive. Reads are safe for
// concurrent use.
type Archive struct {
	file     *os.File
	header   Header
	fileList map[string]*Entry
}

// Header contains archive header information.
type Header struct {
	Magic       [8]byte
	Version     uint32
	TableOffset uint32
	FileCount   uint32
}

// Entry represents a file entry in the archive.
type Entry struct {
	Name             string
	CompressedSize   uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Compressed reports whether the payload is zlib-compressed.
func (e *Entry) Compressed() bool {
	return e.CompressedSize != e.UncompressedSize
}

// Open opens an archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	archive := &Archive{
		file:     file,
		fileList: make(map[string]*Entry),
	}

	if err := archive.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if err := archive.readFileTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading file table: %w", err)
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	r := io.NewSectionReader(a.file, 0, headerSize)
	if err := binary.Read(r, binary.LittleEndian, &a.header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	if string(a.header.Magic[:]) != archiveMagic {
		return ErrInvalidMagic
	}

	if a.header.Version != archiveVersion {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}

	return nil
}

func (a *Archive) readFileTable() error {
	var sizes [8]byte
	if _, err := a.file.ReadAt(sizes[:], int64(a.header.TableOffset)); err != nil {
		return fmt.Errorf("reading table sizes: %w", err)
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	compressedData := make([]byte, compressedSize)
	if _, err := a.file.ReadAt(compressedData, int64(a.header.TableOffset)+8); err != nil {
		return fmt.Errorf("reading table: %w", err)
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}
	defer reader.Close()

	tableData := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(reader, tableData); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	offset := 0
	for i := uint32(0); i < a.header.FileCount; i++ {
		nameEnd := bytes.IndexByte(tableData[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: entry %d has no name terminator", ErrCorruptTable, i)
		}
		name := encoding.DecodeName(tableData[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+13 > len(tableData) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorruptTable, i)
		}

		entry := &Entry{
			Name:             encoding.NormalizePath(name),
			CompressedSize:   binary.LittleEndian.Uint32(tableData[offset:]),
			UncompressedSize: binary.LittleEndian.Uint32(tableData[offset+4:]),
			Flags:            tableData[offset+8],
			Offset:           binary.LittleEndian.Uint32(tableData[offset+9:]),
		}
		offset += 13

		if entry.Flags&FlagFile != 0 {
			a.fileList[entry.Name] = entry
		}
	}

	return nil
}

// List returns all file paths in the archive.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[encoding.NormalizePath(path)]
	return ok
}

// Stat returns the entry for a path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	entry, ok := a.fileList[encoding.NormalizePath(path)]
	return entry, ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	entry, ok := a.fileList[encoding.NormalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	payload := make([]byte, entry.CompressedSize)
	if _, err := a.file.ReadAt(payload, int64(entry.Offset)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !entry.Compressed() {
		return payload, nil
	}

	reader, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	defer reader.Close()

	result := make([]byte, entry.UncompressedSize)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return result, nil
}
