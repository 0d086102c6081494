package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func createTestArchive(t *testing.T, files []File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bmp")
	if err := Create(path, files); err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	return path
}

func TestCreateAndRead(t *testing.T) {
	compressible := bytes.Repeat([]byte("morph"), 200)
	files := []File{
		{Name: `Meshes\Actors\Body.tri`, Data: compressible},
		{Name: "meshes/tiny.tri", Data: []byte{1, 2, 3}},
		{Name: "meshes/empty.tri", Data: nil},
	}
	path := createTestArchive(t, files)

	archive, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer archive.Close()

	list := archive.List()
	sort.Strings(list)
	want := []string{"meshes/actors/body.tri", "meshes/empty.tri", "meshes/tiny.tri"}
	if len(list) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), list)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], list[i])
		}
	}

	entry, ok := archive.Stat("MESHES/ACTORS/BODY.TRI")
	if !ok {
		t.Fatal("Stat should be case-insensitive")
	}
	if !entry.Compressed() {
		t.Error("repetitive payload should be stored compressed")
	}

	data, err := archive.Read(`meshes\actors\body.tri`)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if !bytes.Equal(data, compressible) {
		t.Errorf("content mismatch: got %d bytes, want %d", len(data), len(compressible))
	}

	tiny, err := archive.Read("meshes/tiny.tri")
	if err != nil {
		t.Fatalf("failed to read stored file: %v", err)
	}
	if !bytes.Equal(tiny, []byte{1, 2, 3}) {
		t.Errorf("expected stored bytes, got %v", tiny)
	}

	empty, err := archive.Read("meshes/empty.tri")
	if err != nil {
		t.Fatalf("failed to read empty file: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty file, got %d bytes", len(empty))
	}
}

func TestContains(t *testing.T) {
	path := createTestArchive(t, []File{{Name: "meshes/body.tri", Data: []byte("x")}})

	archive, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer archive.Close()

	if !archive.Contains("Meshes\\Body.tri") {
		t.Error("Contains returned false for existing file")
	}
	if archive.Contains("nonexistent/file/path.tri") {
		t.Error("Contains returned true for non-existent file")
	}

	_, err = archive.Read("nonexistent.tri")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpen_InvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bmp")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xFF}, 64), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := Open(path)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bmp")); err == nil {
		t.Error("expected error for missing archive")
	}
}
