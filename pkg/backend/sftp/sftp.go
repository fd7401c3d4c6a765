// Package sftp adapts a remote file reachable over SFTP into a
// backend.Store, using positional reads so the archive reader never has to
// download the file first.
package sftp

import (
	"context"

	"github.com/pkg/sftp"
)

// Store implements backend.Store over a file opened through an *sftp.Client.
type Store struct {
	client *sftp.Client
	file   *sftp.File
}

// Open opens path on the remote host reachable through client and returns a
// Store over it. The caller owns client's lifetime and must Close the
// returned Store before closing client.
func Open(client *sftp.Client, path string) (*Store, error) {
	f, err := client.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, file: f}, nil
}

// Close closes the remote file handle.
func (s *Store) Close() error {
	return s.file.Close()
}

// Size implements backend.Store.
func (s *Store) Size(_ context.Context) (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadAt implements backend.Store. *sftp.File already guarantees a full
// positional read or an error, matching the backend.Store contract.
func (s *Store) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}
