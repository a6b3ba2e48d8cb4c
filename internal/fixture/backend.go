package fixture

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
)

// Backend is the key-value byte store fixtures live in, keyed by path.
//
// ReadFile must return an error satisfying errors.Is(err, fs.ErrNotExist)
// when nothing is stored at path.
type Backend interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

const filePerm = 0o644

// OSBackend stores fixtures on the local filesystem.
type OSBackend struct{}

// ReadFile reads the file at path.
func (OSBackend) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile creates parent directories as needed and replaces the file at
// path atomically.
func (OSBackend) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	// atomic.WriteFile leaves new files with the temp file's 0600 mode.
	return os.Chmod(path, filePerm)
}

// MemBackend keeps fixtures in memory. The zero value is ready to use.
type MemBackend struct {
	mu    sync.Mutex
	files map[string][]byte
	reads map[string]int
}

// ReadFile returns the stored bytes for path.
func (m *MemBackend) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reads == nil {
		m.reads = make(map[string]int)
	}
	m.reads[path]++
	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores a copy of data under path.
func (m *MemBackend) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

// Paths returns the stored paths in sorted order.
func (m *MemBackend) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Reads returns how many times path was read from the backend.
func (m *MemBackend) Reads(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[path]
}
