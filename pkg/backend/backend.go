// Package backend defines the capability a zip archive source must provide:
// reporting its total size and performing positional, exact-length reads.
// Adapters in the sibling packages (local, mem, s3, sftp) implement it over
// different kinds of storage so the archive reader never has to know where
// the bytes actually live.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// ErrShortRead is wrapped into the returned error by adapters that received
// fewer bytes than requested without the underlying transport reporting an
// error. Per the backing-store contract this is always an adapter defect,
// never a legitimate empty read.
var ErrShortRead = errors.New("backend: adapter returned fewer bytes than requested")

// Store is the capability a backing store must provide to be usable as a
// zip archive source: reporting total size and performing positional reads.
//
// ReadAt must return exactly len(p) bytes at off, or a non-nil error. Unlike
// io.ReaderAt, short reads without an error are never acceptable here -
// adapters must turn them into an error (see ErrShortRead) rather than
// leaving the caller to loop.
type Store interface {
	// Size returns the total byte count of the backing object.
	Size(ctx context.Context) (int64, error)

	// ReadAt reads exactly len(p) bytes starting at off. It returns an
	// error if off or off+len(p) falls outside the object, or if the
	// underlying transport fails.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// CheckFullRead is a helper for Store implementations: given the byte count
// actually read from the underlying transport, it returns ErrShortRead
// (wrapped with the adapter name) if n is less than requested.
func CheckFullRead(adapter string, want, n int) error {
	if n < want {
		return fmt.Errorf("%s: %w (wanted %d, got %d)", adapter, ErrShortRead, want, n)
	}
	return nil
}
