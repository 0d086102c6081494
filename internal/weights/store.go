package weights

import (
	"sort"
	"sync"

	"github.com/Faultbox/bodymorph/internal/strtab"
)

// Store holds the male and female weight tables.
//
// Lock order is Store.mu then MorphMap.mu. Mutations hold the store lock
// while they change a map so an emptied map can be pruned from every key
// that shares it. Readers release the store lock before touching a map,
// and nothing holding a map lock may call back into the Store.
type Store struct {
	mu      sync.RWMutex
	tables  [2]map[CharacterID]*MorphMap
	strings *strtab.Table
}

// NewStore creates an empty store. Morph names are interned into strings.
func NewStore(strings *strtab.Table) *Store {
	if strings == nil {
		strings = strtab.New()
	}
	s := &Store{strings: strings}
	s.tables[Male] = make(map[CharacterID]*MorphMap)
	s.tables[Female] = make(map[CharacterID]*MorphMap)
	return s
}

// Strings returns the name table used by the store.
func (s *Store) Strings() *strtab.Table {
	return s.strings
}

// SetMorph sets the weight of (morph, kw) for a character. Zero removes it.
func (s *Store) SetMorph(id CharacterID, sex Sex, morph string, kw KeywordID, value float32) {
	if !sex.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.tables[sex]
	m, ok := table[id]
	if !ok {
		if value == 0 {
			return
		}
		m = NewMorphMap()
		m.refs = 1
		table[id] = m
	}
	m.SetMorph(s.strings.Intern(morph), kw, value)
	s.pruneLocked(sex, m)
}

// GetMorph returns the weight of (morph, kw) for a character, or 0.
func (s *Store) GetMorph(id CharacterID, sex Sex, morph string, kw KeywordID) float32 {
	if m := s.MorphMap(sex, id); m != nil {
		return m.GetMorph(morph, kw)
	}
	return 0
}

// GetKeywords returns the keywords with a weight on morph.
func (s *Store) GetKeywords(id CharacterID, sex Sex, morph string) []KeywordID {
	if m := s.MorphMap(sex, id); m != nil {
		return m.Keywords(morph)
	}
	return nil
}

// GetMorphs returns the names of every morph with a weight.
func (s *Store) GetMorphs(id CharacterID, sex Sex) []string {
	if m := s.MorphMap(sex, id); m != nil {
		return m.Names()
	}
	return nil
}

// RemoveMorphsByName drops every weight of morph for a character.
func (s *Store) RemoveMorphsByName(id CharacterID, sex Sex, morph string) {
	s.mutate(id, sex, func(m *MorphMap) { m.RemoveByName(morph) })
}

// RemoveMorphsByKeyword drops the weights set under kw for a character.
func (s *Store) RemoveMorphsByKeyword(id CharacterID, sex Sex, kw KeywordID) {
	s.mutate(id, sex, func(m *MorphMap) { m.RemoveByKeyword(kw) })
}

func (s *Store) mutate(id CharacterID, sex Sex, fn func(*MorphMap)) {
	if !sex.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tables[sex][id]
	if !ok {
		return
	}
	fn(m)
	s.pruneLocked(sex, m)
}

// pruneLocked removes every key referencing m once m is empty.
func (s *Store) pruneLocked(sex Sex, m *MorphMap) {
	if m.Len() > 0 {
		return
	}
	table := s.tables[sex]
	for key, other := range table {
		if other == m {
			delete(table, key)
		}
	}
	m.refs = 0
}

// ClearMorphs removes a character's table entry. A map shared with other
// characters stays visible through them.
func (s *Store) ClearMorphs(id CharacterID, sex Sex) {
	if !sex.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(sex, id)
}

func (s *Store) dropLocked(sex Sex, id CharacterID) {
	if m, ok := s.tables[sex][id]; ok {
		m.refs--
		delete(s.tables[sex], id)
	}
}

// CloneMorphs makes target share source's map. Later changes through either
// character are visible through both until DetachMorphs is called.
// Nothing happens when source has no weights.
func (s *Store) CloneMorphs(sex Sex, source, target CharacterID) {
	if !sex.Valid() || source == target {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tables[sex][source]
	if !ok {
		return
	}
	s.dropLocked(sex, target)
	m.refs++
	s.tables[sex][target] = m
}

// DetachMorphs gives a character a private copy of a shared map.
func (s *Store) DetachMorphs(sex Sex, id CharacterID) {
	if !sex.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tables[sex][id]
	if !ok || m.refs <= 1 {
		return
	}
	m.refs--
	c := m.Clone()
	c.refs = 1
	s.tables[sex][id] = c
}

// Shared reports whether the character's map is referenced by other
// characters.
func (s *Store) Shared(sex Sex, id CharacterID) bool {
	if !sex.Valid() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.tables[sex][id]
	return ok && m.refs > 1
}

// MorphMap returns the character's map, or nil.
func (s *Store) MorphMap(sex Sex, id CharacterID) *MorphMap {
	if !sex.Valid() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[sex][id]
}

// Characters returns the ids with weights in ascending order.
func (s *Store) Characters(sex Sex) []CharacterID {
	if !sex.Valid() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]CharacterID, 0, len(s.tables[sex]))
	for id := range s.tables[sex] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of characters with weights in a table.
func (s *Store) Len(sex Sex) int {
	if !sex.Valid() {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[sex])
}

// Revert drops every weight in both tables.
func (s *Store) Revert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[Male] = make(map[CharacterID]*MorphMap)
	s.tables[Female] = make(map[CharacterID]*MorphMap)
}

// insert adds a loaded map unless the character already has one.
func (s *Store) insert(sex Sex, id CharacterID, m *MorphMap) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[sex][id]; ok {
		return false
	}
	m.refs = 1
	s.tables[sex][id] = m
	return true
}
