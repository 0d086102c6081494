package weights

import (
	"sort"
	"sync"
)

// MorphMap holds every morph weight of one character. A MorphMap may be
// shared by several characters after Store.CloneMorphs; changes through one
// character are then visible through all of them.
type MorphMap struct {
	mu     sync.Mutex
	morphs map[string]*Values
	refs   int // keys referencing this map, guarded by the owning Store
}

// NewMorphMap creates an empty map.
func NewMorphMap() *MorphMap {
	return &MorphMap{morphs: make(map[string]*Values)}
}

// SetMorph stores value for (morph, kw). Zero removes the entry, and a morph
// left with no keywords is removed.
func (m *MorphMap) SetMorph(morph string, kw KeywordID, value float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(morph, kw, value)
}

func (m *MorphMap) setLocked(morph string, kw KeywordID, value float32) {
	values, ok := m.morphs[morph]
	if !ok {
		if value == 0 {
			return
		}
		values = newValues()
		m.morphs[morph] = values
	}
	values.Set(kw, value)
	if values.Len() == 0 {
		delete(m.morphs, morph)
	}
}

// GetMorph returns the weight for (morph, kw), or 0.
func (m *MorphMap) GetMorph(morph string, kw KeywordID) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if values, ok := m.morphs[morph]; ok {
		return values.Get(kw)
	}
	return 0
}

// EffectiveValue returns the applied weight of morph, or 0.
func (m *MorphMap) EffectiveValue(morph string) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if values, ok := m.morphs[morph]; ok {
		return values.EffectiveValue()
	}
	return 0
}

// Keywords returns the keywords with a weight on morph.
func (m *MorphMap) Keywords(morph string) []KeywordID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if values, ok := m.morphs[morph]; ok {
		return values.Keywords()
	}
	return nil
}

// Names returns the morph names in sorted order.
func (m *MorphMap) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.namesLocked()
}

func (m *MorphMap) namesLocked() []string {
	names := make([]string, 0, len(m.morphs))
	for name := range m.morphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveByName drops every weight of morph.
func (m *MorphMap) RemoveByName(morph string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.morphs, morph)
}

// RemoveByKeyword drops the weight set under kw from every morph.
func (m *MorphMap) RemoveByKeyword(kw KeywordID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, values := range m.morphs {
		values.Remove(kw)
		if values.Len() == 0 {
			delete(m.morphs, name)
		}
	}
}

// Len returns the number of morphs with at least one weight.
func (m *MorphMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.morphs)
}

// Range calls fn for every morph in name order while holding the map lock,
// so fn sees one consistent table. fn must not call methods on m.
func (m *MorphMap) Range(fn func(morph string, values *Values)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.namesLocked() {
		fn(name, m.morphs[name])
	}
}

// Clone returns an unshared deep copy.
func (m *MorphMap) Clone() *MorphMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &MorphMap{morphs: make(map[string]*Values, len(m.morphs))}
	for name, values := range m.morphs {
		c.morphs[name] = values.clone()
	}
	return c
}
