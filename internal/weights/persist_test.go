package weights

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/Faultbox/bodymorph/internal/serialization"
	"github.com/Faultbox/bodymorph/internal/strtab"
)

// saveStore writes the string table followed by the weight tables.
func saveStore(t *testing.T, s *Store) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := serialization.NewStreamWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Strings().Save(w); err != nil {
		t.Fatalf("saving strings: %v", err)
	}
	if err := s.Save(w); err != nil {
		t.Fatalf("saving weights: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// loadStore replays a stream into a fresh store and returns the ids that
// were inserted.
func loadStore(t *testing.T, data []byte, opts LoadOptions) (*Store, []CharacterID, error) {
	t.Helper()
	s := NewStore(strtab.New())
	r, err := serialization.NewStreamReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	var saved map[uint32]string
	var inserted []CharacterID
	for {
		h, err := r.NextRecord()
		if err == io.EOF {
			return s, inserted, nil
		}
		if err != nil {
			return s, inserted, err
		}
		if h.Tag == strtab.RecordTag {
			if saved, err = s.Strings().Load(r, h.Version); err != nil {
				return s, inserted, err
			}
			continue
		}
		sex, ok := SexForTag(h.Tag)
		if !ok {
			return s, inserted, ErrUnexpectedRecord
		}
		id, ok, err := s.Load(r, sex, h.Version, saved, opts)
		if err != nil {
			return s, inserted, err
		}
		if ok {
			inserted = append(inserted, id)
		}
	}
}

// snapshot flattens a table for comparison.
func snapshot(s *Store, sex Sex) map[CharacterID]map[string]map[KeywordID]float32 {
	out := make(map[CharacterID]map[string]map[KeywordID]float32)
	for _, id := range s.Characters(sex) {
		morphs := make(map[string]map[KeywordID]float32)
		s.MorphMap(sex, id).Range(func(name string, values *Values) {
			kws := make(map[KeywordID]float32)
			for _, kw := range values.Keywords() {
				kws[kw] = values.Get(kw)
			}
			morphs[name] = kws
		})
		out[id] = morphs
	}
	return out
}

func TestPersist_RoundTrip(t *testing.T) {
	src := NewStore(strtab.New())
	src.SetMorph(0x14, Male, "Thin", NoKeyword, 0.25)
	src.SetMorph(0x14, Male, "Thin", kwA, -0.5)
	src.SetMorph(0x800, Female, "Breasts", kwB, 1)
	src.SetMorph(0x800, Female, "Hips", kwC, 0.75)
	src.SetMorph(0x801, Female, "Hips", kwC, 0.1)

	data := saveStore(t, src)
	dst, inserted, err := loadStore(t, data, LoadOptions{Enabled: true})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	for _, sex := range []Sex{Male, Female} {
		if want, got := snapshot(src, sex), snapshot(dst, sex); !reflect.DeepEqual(want, got) {
			t.Errorf("%s table mismatch:\nwant %v\ngot  %v", sex, want, got)
		}
	}
	if !reflect.DeepEqual(inserted, []CharacterID{0x14, 0x800, 0x801}) {
		t.Errorf("inserted = %v", inserted)
	}
}

func TestPersist_DisabledDiscardsButStaysAligned(t *testing.T) {
	src := NewStore(strtab.New())
	src.SetMorph(1, Male, "Thin", kwA, 0.5)
	src.SetMorph(2, Female, "Thin", kwA, 0.5)

	dst, inserted, err := loadStore(t, saveStore(t, src), LoadOptions{Enabled: false})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if dst.Len(Male) != 0 || dst.Len(Female) != 0 || len(inserted) != 0 {
		t.Error("expected nothing kept with the feature disabled")
	}
}

func TestPersist_StaleReferencesDropped(t *testing.T) {
	src := NewStore(strtab.New())
	src.SetMorph(0x14, Male, "Thin", kwA, 0.5)
	src.SetMorph(0x14, Male, "Thin", kwB, 0.6)
	src.SetMorph(0x15, Male, "Thin", kwA, 0.5)

	resolver := &serialization.MapResolver{FormIDs: map[uint32]uint32{
		0x14:        0x14,
		uint32(kwA): uint32(kwA),
	}}
	dst, _, err := loadStore(t, saveStore(t, src), LoadOptions{Enabled: true, Resolver: resolver})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got := dst.Characters(Male); !reflect.DeepEqual(got, []CharacterID{0x14}) {
		t.Errorf("expected only 0x14 to survive, got %v", got)
	}
	if got := dst.GetKeywords(0x14, Male, "Thin"); !reflect.DeepEqual(got, []KeywordID{kwA}) {
		t.Errorf("expected stale keyword dropped, got %v", got)
	}
}

// legacyRecord writes a version 1 table record pair by hand.
func legacyRecord(w *serialization.StreamWriter, handle uint64, nameID uint32, kwHandle uint64, value float32) {
	w.OpenRecord(TagFemale, Version1)
	serialization.WriteU64(w, handle)
	w.OpenRecord(TagMorphs, Version1)
	serialization.WriteU32(w, 1) // morphs
	serialization.WriteU32(w, nameID)
	serialization.WriteU32(w, 1) // keywords
	serialization.WriteU64(w, kwHandle)
	serialization.WriteF32(w, value)
}

func TestPersist_LegacyHandles(t *testing.T) {
	names := strtab.New()
	thin := names.ID("Thin")

	var buf bytes.Buffer
	w, _ := serialization.NewStreamWriter(&buf)
	names.Save(w)
	legacyRecord(w, 0xDEAD00000000BEEF, thin, 0, 0.4)              // stale character
	legacyRecord(w, 0xFFFF000000000014, thin, 0xFFFF00000777, 0.9) // live
	legacyRecord(w, 0xFFFF000000000015, thin, 0, 0)                // zero weight only
	w.Close()

	resolver := &serialization.MapResolver{Handles: map[uint64]uint32{
		0xFFFF000000000014: 0x14,
		0xFFFF000000000015: 0x15,
		0xFFFF00000777:     0x777,
	}}
	dst, inserted, err := loadStore(t, buf.Bytes(), LoadOptions{Enabled: true, Resolver: resolver})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if !reflect.DeepEqual(inserted, []CharacterID{0x14}) {
		t.Errorf("inserted = %v, want [0x14]", inserted)
	}
	if got := dst.GetMorph(0x14, Female, "Thin", 0x777); got != 0.9 {
		t.Errorf("GetMorph = %v, want 0.9", got)
	}
	if dst.MorphMap(Female, 0x15) != nil {
		t.Error("a character with only zero weights must not be inserted")
	}
}

func TestPersist_Errors(t *testing.T) {
	names := strtab.New()
	thin := names.ID("Thin")

	tests := []struct {
		name  string
		build func(w *serialization.StreamWriter)
		want  error
	}{
		{
			name: "unknown string id",
			build: func(w *serialization.StreamWriter) {
				legacyRecord(w, 1, thin+50, 0, 0.5)
			},
			want: ErrUnknownString,
		},
		{
			name: "unexpected record after table",
			build: func(w *serialization.StreamWriter) {
				w.OpenRecord(TagMale, Version2)
				serialization.WriteU32(w, 1)
				w.OpenRecord(serialization.NewTag("XXXX"), 1)
			},
			want: ErrUnexpectedRecord,
		},
		{
			name: "missing morph record",
			build: func(w *serialization.StreamWriter) {
				w.OpenRecord(TagMale, Version2)
				serialization.WriteU32(w, 1)
			},
			want: ErrTruncatedRecord,
		},
		{
			name: "truncated morph record",
			build: func(w *serialization.StreamWriter) {
				w.OpenRecord(TagMale, Version2)
				serialization.WriteU32(w, 1)
				w.OpenRecord(TagMorphs, Version2)
				serialization.WriteU32(w, 3)
			},
			want: ErrTruncatedRecord,
		},
		{
			name: "unsupported version",
			build: func(w *serialization.StreamWriter) {
				w.OpenRecord(TagMale, 9)
				serialization.WriteU32(w, 1)
			},
			want: ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w, _ := serialization.NewStreamWriter(&buf)
			names.Save(w)
			tt.build(w)
			w.Close()

			_, _, err := loadStore(t, buf.Bytes(), LoadOptions{Enabled: true})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPersist_FailedRecordKeepsEarlierCharacters(t *testing.T) {
	names := strtab.New()
	thin := names.ID("Thin")

	var buf bytes.Buffer
	w, _ := serialization.NewStreamWriter(&buf)
	names.Save(w)
	legacyRecord(w, 0x14, thin, 0, 0.5)
	legacyRecord(w, 0x15, thin+50, 0, 0.5)
	w.Close()

	dst, _, err := loadStore(t, buf.Bytes(), LoadOptions{Enabled: true})
	if !errors.Is(err, ErrUnknownString) {
		t.Fatalf("expected ErrUnknownString, got %v", err)
	}
	if got := dst.GetMorph(0x14, Female, "Thin", NoKeyword); got != 0.5 {
		t.Errorf("earlier character lost: %v", got)
	}
}

// hookWriter runs hook once, right after the first write into a morph
// record.
type hookWriter struct {
	*serialization.StreamWriter
	hook  func()
	armed bool
	fired bool
}

func (w *hookWriter) OpenRecord(tag serialization.Tag, version uint32) error {
	if tag == TagMorphs && !w.fired {
		w.armed = true
	}
	return w.StreamWriter.OpenRecord(tag, version)
}

func (w *hookWriter) Write(p []byte) (int, error) {
	n, err := w.StreamWriter.Write(p)
	if w.armed {
		w.armed = false
		w.fired = true
		w.hook()
	}
	return n, err
}

func TestPersist_SaveDuringConcurrentClear(t *testing.T) {
	src := NewStore(strtab.New())
	src.SetMorph(0x14, Female, "A", kwA, 0.5)
	src.SetMorph(0x14, Female, "B", NoKeyword, 0.25)
	src.SetMorph(0x15, Female, "A", kwA, 1)

	var buf bytes.Buffer
	sw, err := serialization.NewStreamWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	w := &hookWriter{StreamWriter: sw, hook: func() {
		src.SetMorph(0x14, Female, "B", NoKeyword, 0)
	}}
	if err := src.Strings().Save(w); err != nil {
		t.Fatal(err)
	}
	if err := src.Save(w); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if !w.fired {
		t.Fatal("expected the clear to run during save")
	}
	if src.GetMorph(0x14, Female, "B", NoKeyword) != 0 {
		t.Fatal("expected B to be cleared in the live store")
	}

	dst, inserted, err := loadStore(t, buf.Bytes(), LoadOptions{Enabled: true})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(inserted, []CharacterID{0x14, 0x15}) {
		t.Errorf("inserted = %v", inserted)
	}
	if got := dst.GetMorph(0x15, Female, "A", kwA); got != 1 {
		t.Errorf("second character lost: %v", got)
	}
}
