// Package assets resolves resource paths against loose files and archives.
package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Faultbox/bodymorph/pkg/archive"
	"github.com/Faultbox/bodymorph/pkg/encoding"
)

// ErrNotFound is returned when no source holds the requested path. It
// matches fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("resource %w", fs.ErrNotExist)

// Manager loads resources from a loose-file directory and from archives.
// Loose files win over archives; archives are searched in reverse order
// (last added = highest priority).
type Manager struct {
	dataDir  string
	archives []*archive.Archive
	mu       sync.RWMutex
}

// NewManager creates a manager rooted at dataDir. An empty dataDir disables
// loose-file lookup.
func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir}
}

// AddArchive adds an archive to the manager.
func (m *Manager) AddArchive(path string) error {
	a, err := archive.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	m.mu.Lock()
	m.archives = append(m.archives, a)
	m.mu.Unlock()

	return nil
}

// Load reads a resource by its relative path.
func (m *Manager) Load(path string) ([]byte, error) {
	norm := encoding.NormalizePath(path)

	if data, err := m.loadLoose(norm); err == nil {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		if !m.archives[i].Contains(norm) {
			continue
		}
		return m.archives[i].Read(norm)
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// loadLoose reads a file under dataDir using the lowercased path.
func (m *Manager) loadLoose(norm string) ([]byte, error) {
	if m.dataDir == "" {
		return nil, ErrNotFound
	}
	return os.ReadFile(filepath.Join(m.dataDir, filepath.FromSlash(norm)))
}

// Close closes all archives.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.archives {
		a.Close()
	}
	m.archives = nil
}
