package serialization

// Resolver maps identifiers stored by an earlier session to live ones.
type Resolver interface {
	// ResolveFormID maps a stable 32-bit id (current saves).
	ResolveFormID(id uint32) (uint32, bool)
	// ResolveHandle maps a legacy 64-bit runtime handle (version 1 saves).
	ResolveHandle(handle uint64) (uint32, bool)
}

// MapResolver resolves from fixed tables. With Permissive set, ids missing
// from the tables resolve to themselves and handles to their low 32 bits.
type MapResolver struct {
	FormIDs    map[uint32]uint32
	Handles    map[uint64]uint32
	Permissive bool
}

// ResolveFormID implements Resolver.
func (m *MapResolver) ResolveFormID(id uint32) (uint32, bool) {
	if v, ok := m.FormIDs[id]; ok {
		return v, true
	}
	if m.Permissive && id != 0 {
		return id, true
	}
	return 0, false
}

// ResolveHandle implements Resolver.
func (m *MapResolver) ResolveHandle(handle uint64) (uint32, bool) {
	if v, ok := m.Handles[handle]; ok {
		return v, true
	}
	if m.Permissive && uint32(handle) != 0 {
		return uint32(handle), true
	}
	return 0, false
}
