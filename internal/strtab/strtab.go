// Package strtab interns morph names and assigns them ids that are stable
// for the lifetime of a save.
package strtab

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/Faultbox/bodymorph/internal/serialization"
)

// RecordTag marks the string table record in a save stream.
var RecordTag = serialization.NewTag("STRT")

// RecordVersion is the current string table record version.
const RecordVersion uint32 = 1

// Table maps names to ids. Ids start at 1 and are never reused.
type Table struct {
	mu    sync.RWMutex
	ids   map[string]uint32
	names map[uint32]string
	next  uint32
}

// New creates an empty table.
func New() *Table {
	return &Table{
		ids:   make(map[string]uint32),
		names: make(map[uint32]string),
		next:  1,
	}
}

// Intern returns the canonical copy of name, adding it if needed.
func (t *Table) Intern(name string) string {
	id := t.ID(name)
	s, _ := t.Lookup(id)
	return s
}

// ID returns the id for name, assigning one if needed.
func (t *Table) ID(name string) uint32 {
	t.mu.RLock()
	id, ok := t.ids[name]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[name]; ok {
		return id
	}
	id = t.next
	t.next++
	t.ids[name] = id
	t.names[id] = name
	return id
}

// Lookup returns the name for id.
func (t *Table) Lookup(id uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.names[id]
	return name, ok
}

// Len returns the number of interned names.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}

// Save writes the table as one record: count u32, then per entry
// id u32, length u16, name bytes. Entries are written in id order.
func (t *Table) Save(w serialization.Writer) error {
	t.mu.RLock()
	ids := make([]uint32, 0, len(t.names))
	for id := range t.names {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if err := w.OpenRecord(RecordTag, RecordVersion); err != nil {
		return err
	}
	if err := serialization.WriteU32(w, uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		name, _ := t.Lookup(id)
		if len(name) > 0xFFFF {
			return fmt.Errorf("string %d too long: %d bytes", id, len(name))
		}
		if err := serialization.WriteU32(w, id); err != nil {
			return err
		}
		if err := serialization.WriteU16(w, uint16(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a string table record body and returns the saved id to name
// mapping. The names are interned into t; their new ids may differ.
func (t *Table) Load(r io.Reader, version uint32) (map[uint32]string, error) {
	if version != RecordVersion {
		return nil, fmt.Errorf("unsupported string table version %d", version)
	}
	count, err := serialization.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("reading string count: %w", err)
	}

	saved := make(map[uint32]string, count)
	for i := uint32(0); i < count; i++ {
		id, err := serialization.ReadU32(r)
		if err != nil {
			return nil, fmt.Errorf("reading string %d id: %w", i, err)
		}
		size, err := serialization.ReadU16(r)
		if err != nil {
			return nil, fmt.Errorf("reading string %d length: %w", i, err)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading string %d: %w", i, err)
		}
		saved[id] = t.Intern(string(buf))
	}
	return saved, nil
}
