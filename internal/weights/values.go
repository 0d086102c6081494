// Package weights stores per-character morph weights.
//
// Each character has, per morph name, a set of weights keyed by the keyword
// that contributed them. The weight applied to the mesh is the largest of
// those contributions. Zero is never stored: setting a weight to zero removes
// it, and containers left empty are pruned immediately.
package weights

import (
	"fmt"
	"sort"
)

// Sex selects one of the two weight tables.
type Sex uint8

const (
	Male Sex = iota
	Female
)

// String returns the table name.
func (s Sex) String() string {
	switch s {
	case Male:
		return "male"
	case Female:
		return "female"
	default:
		return fmt.Sprintf("Sex(%d)", s)
	}
}

// Valid reports whether s names a table.
func (s Sex) Valid() bool {
	return s == Male || s == Female
}

// CharacterID is a stable character identifier.
type CharacterID uint32

// KeywordID identifies the keyword a weight was set under.
type KeywordID uint32

// NoKeyword is the keyword used for weights set without one.
const NoKeyword KeywordID = 0

// Values holds the weights of one morph, keyed by keyword. It is not safe
// for concurrent use on its own; MorphMap guards it.
type Values struct {
	m map[KeywordID]float32
}

func newValues() *Values {
	return &Values{m: make(map[KeywordID]float32)}
}

// Get returns the weight for kw, or 0.
func (v *Values) Get(kw KeywordID) float32 {
	return v.m[kw]
}

// Set stores value for kw. A zero value removes the entry.
func (v *Values) Set(kw KeywordID, value float32) {
	if value == 0 {
		delete(v.m, kw)
		return
	}
	v.m[kw] = value
}

// Remove deletes the entry for kw.
func (v *Values) Remove(kw KeywordID) {
	delete(v.m, kw)
}

// EffectiveValue returns the largest weight, or 0 when empty.
func (v *Values) EffectiveValue() float32 {
	var best float32
	first := true
	for _, value := range v.m {
		if first || value > best {
			best, first = value, false
		}
	}
	return best
}

// Len returns the number of keywords with a weight.
func (v *Values) Len() int {
	return len(v.m)
}

// Keywords returns the keywords in ascending order.
func (v *Values) Keywords() []KeywordID {
	kws := make([]KeywordID, 0, len(v.m))
	for kw := range v.m {
		kws = append(kws, kw)
	}
	sort.Slice(kws, func(i, j int) bool { return kws[i] < kws[j] })
	return kws
}

func (v *Values) clone() *Values {
	c := &Values{m: make(map[KeywordID]float32, len(v.m))}
	for kw, value := range v.m {
		c.m[kw] = value
	}
	return c
}
