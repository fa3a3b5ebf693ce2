// Package storage writes export files under an output directory. Every file
// is written to a temporary sibling first and renamed into place, so readers
// never observe a partially written export.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Manager handles file output below one directory and remembers what it wrote
type Manager struct {
	outputDir string
	written   map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		written:   make(map[string]bool),
	}, nil
}

// Path resolves a name relative to the output directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, filepath.FromSlash(name))
}

// Exists reports whether name is present in the output directory
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.Path(name))
	return err == nil
}

// Save copies r into name
func (m *Manager) Save(name string, r io.Reader) error {
	return m.WriteFunc(name, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}

// WriteFunc atomically replaces name with whatever fn writes
func (m *Manager) WriteFunc(name string, fn func(w io.Writer) error) error {
	if err := WriteFileAtomic(m.Path(name), fn); err != nil {
		return err
	}

	m.mu.Lock()
	m.written[filepath.ToSlash(name)] = true
	m.mu.Unlock()
	return nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Written returns the names written through this manager, sorted
func (m *Manager) Written() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.written))
	for name := range m.written {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WrittenCount returns the number of distinct files written
func (m *Manager) WrittenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.written)
}

// WriteFileAtomic writes path through a temporary file and a rename. The
// parent directory is created when missing.
func WriteFileAtomic(path string, fn func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	buf := bufio.NewWriter(out)
	err = fn(buf)
	if err == nil {
		err = buf.Flush()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
