// Package local provides a backend.Store backed by a local *os.File.
package local

import (
	"context"
	"os"

	"github.com/alec-rabold/zipspy/pkg/backend"
)

// Store implements backend.Store over a local file opened for reading.
type Store struct {
	f *os.File
}

// Open opens name for reading and returns a Store over it. The caller is
// responsible for closing the returned Store (via Close) when done; the
// archive reader never closes backing stores itself.
func Open(name string) (*Store, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &Store{f: f}, nil
}

// New wraps an already-open *os.File as a backend.Store.
func New(f *os.File) *Store {
	return &Store{f: f}
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.f.Close()
}

// Size implements backend.Store.
func (s *Store) Size(_ context.Context) (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadAt implements backend.Store.
func (s *Store) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	n, err := s.f.ReadAt(p, off)
	if err != nil {
		return n, err
	}
	if cerr := backend.CheckFullRead("local", len(p), n); cerr != nil {
		return n, cerr
	}
	return n, nil
}
