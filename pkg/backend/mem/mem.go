// Package mem provides an in-memory backend.Store, backed by a plain byte
// slice. It is primarily used by tests that build small zip fixtures in
// memory, but is also a legitimate adapter for archives already fully
// buffered by the caller.
package mem

import (
	"context"
	"fmt"

	"github.com/alec-rabold/zipspy/pkg/backend"
)

// Store implements backend.Store over an in-memory byte slice.
type Store struct {
	data []byte
}

// New wraps b as a backend.Store. b is not copied; callers must not mutate
// it while the Store is in use.
func New(b []byte) *Store {
	return &Store{data: b}
}

// Size implements backend.Store.
func (s *Store) Size(_ context.Context) (int64, error) {
	return int64(len(s.data)), nil
}

// ReadAt implements backend.Store.
func (s *Store) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, fmt.Errorf("mem: offset %d out of range [0,%d]", off, len(s.data))
	}
	n := copy(p, s.data[off:])
	if err := backend.CheckFullRead("mem", len(p), n); err != nil {
		return n, err
	}
	return n, nil
}
