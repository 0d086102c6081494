package weights

import (
	"errors"
	"fmt"

	"github.com/Faultbox/bodymorph/internal/logger"
	"github.com/Faultbox/bodymorph/internal/serialization"
	"go.uber.org/zap"
)

// Record tags.
var (
	TagMale   = serialization.NewTag("MRPM")
	TagFemale = serialization.NewTag("MRPH")
	TagMorphs = serialization.NewTag("MRVM")
)

// Record versions.
const (
	Version1 uint32 = 1 // 64-bit runtime handles
	Version2 uint32 = 2 // 32-bit stable ids

	CurrentVersion = Version2
)

// Persistence errors.
var (
	ErrUnexpectedRecord   = errors.New("unexpected record type")
	ErrTruncatedRecord    = errors.New("truncated weight record")
	ErrUnknownString      = errors.New("morph name id missing from string table")
	ErrUnsupportedVersion = errors.New("unsupported weight record version")
)

// TableTag returns the record tag for a sex.
func TableTag(sex Sex) serialization.Tag {
	if sex == Female {
		return TagFemale
	}
	return TagMale
}

// SexForTag maps a table record tag back to its sex.
func SexForTag(tag serialization.Tag) (Sex, bool) {
	switch tag {
	case TagMale:
		return Male, true
	case TagFemale:
		return Female, true
	}
	return 0, false
}

// Save writes both tables. Each character produces a table record holding
// its id, followed by a morph record:
//
//	morphs u32, per morph: name id u32, keywords u32,
//	per keyword: keyword u32, weight f32
//
// Name ids refer to the store's string table, which must be saved too.
func (s *Store) Save(w serialization.Writer) error {
	for _, sex := range []Sex{Male, Female} {
		for _, id := range s.Characters(sex) {
			m := s.MorphMap(sex, id)
			if m == nil {
				continue
			}
			if err := w.OpenRecord(TableTag(sex), CurrentVersion); err != nil {
				return err
			}
			if err := serialization.WriteU32(w, uint32(id)); err != nil {
				return err
			}
			if err := s.saveMorphs(w, m); err != nil {
				return fmt.Errorf("saving %s character %08X: %w", sex, uint32(id), err)
			}
		}
	}
	return nil
}

func (s *Store) saveMorphs(w serialization.Writer, m *MorphMap) error {
	if err := w.OpenRecord(TagMorphs, CurrentVersion); err != nil {
		return err
	}

	var err error
	write := func(v uint32) {
		if err == nil {
			err = serialization.WriteU32(w, v)
		}
	}

	// The count and the entries must come from the same view of m.
	snap := m.Clone()
	names := snap.Names()
	write(uint32(len(names)))
	for _, morph := range names {
		values := snap.morphs[morph]
		write(s.strings.ID(morph))
		kws := values.Keywords()
		write(uint32(len(kws)))
		for _, kw := range kws {
			write(uint32(kw))
			if err == nil {
				err = serialization.WriteF32(w, values.Get(kw))
			}
		}
	}
	return err
}

// LoadOptions controls how loaded weights are applied.
type LoadOptions struct {
	// Enabled keeps the decoded weights. When false the record is still
	// fully read so the stream stays aligned, then discarded.
	Enabled bool
	// Resolver maps saved references to live ones. Nil resolves every
	// reference to itself.
	Resolver serialization.Resolver
}

// Load decodes one table record whose header has just been read, together
// with the morph record that follows it. saved maps name ids to names as
// read from the string table record.
//
// Characters and keywords that no longer resolve are dropped without error.
// It returns the live character id and whether weights were inserted.
func (s *Store) Load(r serialization.Reader, sex Sex, version uint32, saved map[uint32]string, opts LoadOptions) (CharacterID, bool, error) {
	var formID uint32
	var handle uint64
	var err error
	switch version {
	case Version2:
		formID, err = serialization.ReadU32(r)
	case Version1:
		handle, err = serialization.ReadU64(r)
	default:
		return 0, false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: character reference: %v", ErrTruncatedRecord, err)
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = &serialization.MapResolver{Permissive: true}
	}

	m, err := loadMorphs(r, saved, resolver)
	if err != nil {
		return 0, false, err
	}

	if !opts.Enabled {
		return 0, false, nil
	}

	log := logger.Named("weights")
	var id uint32
	var ok bool
	if version == Version2 {
		id, ok = resolver.ResolveFormID(formID)
	} else {
		id, ok = resolver.ResolveHandle(handle)
	}
	if !ok {
		log.Debug("dropping weights of unresolved character",
			zap.Uint32("form_id", formID), zap.Uint64("handle", handle))
		return 0, false, nil
	}
	if m.Len() == 0 {
		return CharacterID(id), false, nil
	}

	inserted := s.insert(sex, CharacterID(id), m)
	return CharacterID(id), inserted, nil
}

func loadMorphs(r serialization.Reader, saved map[uint32]string, resolver serialization.Resolver) (*MorphMap, error) {
	header, err := r.NextRecord()
	if err != nil {
		return nil, fmt.Errorf("%w: missing morph record: %v", ErrTruncatedRecord, err)
	}
	if header.Tag != TagMorphs {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedRecord, header.Tag)
	}
	if header.Version != Version1 && header.Version != Version2 {
		return nil, fmt.Errorf("%w: morph record version %d", ErrUnsupportedVersion, header.Version)
	}

	truncated := func(what string, err error) error {
		return fmt.Errorf("%w: %s: %v", ErrTruncatedRecord, what, err)
	}

	numMorphs, err := serialization.ReadU32(r)
	if err != nil {
		return nil, truncated("morph count", err)
	}

	log := logger.Named("weights")
	m := NewMorphMap()
	for i := uint32(0); i < numMorphs; i++ {
		nameID, err := serialization.ReadU32(r)
		if err != nil {
			return nil, truncated("name id", err)
		}
		name, ok := saved[nameID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownString, nameID)
		}

		numKeys, err := serialization.ReadU32(r)
		if err != nil {
			return nil, truncated("keyword count", err)
		}

		values := newValues()
		for k := uint32(0); k < numKeys; k++ {
			var formID uint32
			var handle uint64
			if header.Version == Version2 {
				formID, err = serialization.ReadU32(r)
			} else {
				handle, err = serialization.ReadU64(r)
			}
			if err != nil {
				return nil, truncated("keyword", err)
			}
			value, err := serialization.ReadF32(r)
			if err != nil {
				return nil, truncated("weight", err)
			}

			if value == 0 {
				continue
			}

			kw := NoKeyword
			if formID != 0 || handle != 0 {
				var resolved uint32
				if header.Version == Version2 {
					resolved, ok = resolver.ResolveFormID(formID)
				} else {
					resolved, ok = resolver.ResolveHandle(handle)
				}
				if !ok {
					log.Debug("dropping weight of unresolved keyword",
						zap.String("morph", name),
						zap.Uint32("form_id", formID), zap.Uint64("handle", handle))
					continue
				}
				kw = KeywordID(resolved)
			}
			values.Set(kw, value)
		}

		if values.Len() == 0 {
			continue
		}
		m.morphs[name] = values
	}

	return m, nil
}
