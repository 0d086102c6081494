package archive

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/Faultbox/bodymorph/pkg/encoding"
)

// File is a named payload to store in an archive.
type File struct {
	Name string
	Data []byte
}

// Create writes files to a new archive at path. Entries are stored sorted
// by normalized name; later duplicates replace earlier ones.
func Create(path string, files []File) error {
	byName := make(map[string][]byte, len(files))
	for _, f := range files {
		byName[encoding.NormalizePath(f.Name)] = f.Data
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	buf.Write(make([]byte, headerSize)) // header placeholder

	table := new(bytes.Buffer)
	for _, name := range names {
		data := byName[name]
		payload, err := compress(data)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}
		if len(payload) >= len(data) {
			payload = data
		}

		offset := uint32(buf.Len())
		buf.Write(payload)

		table.Write(encoding.EncodeName(name))
		table.WriteByte(0)
		binary.Write(table, binary.LittleEndian, uint32(len(payload)))
		binary.Write(table, binary.LittleEndian, uint32(len(data)))
		table.WriteByte(FlagFile)
		binary.Write(table, binary.LittleEndian, offset)
	}

	compressedTable, err := compress(table.Bytes())
	if err != nil {
		return fmt.Errorf("compressing file table: %w", err)
	}

	tableOffset := uint32(buf.Len())
	binary.Write(buf, binary.LittleEndian, uint32(len(compressedTable)))
	binary.Write(buf, binary.LittleEndian, uint32(table.Len()))
	buf.Write(compressedTable)

	header := Header{
		Version:     archiveVersion,
		TableOffset: tableOffset,
		FileCount:   uint32(len(names)),
	}
	copy(header.Magic[:], archiveMagic)

	out := buf.Bytes()
	hdr := new(bytes.Buffer)
	binary.Write(hdr, binary.LittleEndian, &header)
	copy(out[:headerSize], hdr.Bytes())

	return os.WriteFile(path, out, 0644)
}

func compress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
