// Package archive implements the three-operation facade (§4.6) over a
// backend.Store: open locates and parses the central directory eagerly,
// list enumerates the resulting entries in central-directory order, and
// stream returns a lazy, decompressing byte-chunk sequence for one entry.
package archive

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/alec-rabold/zipspy/pkg/backend"
	"github.com/alec-rabold/zipspy/pkg/zipio"
)

// StreamOptions carries the recognised stream() option (§6): chunk_size.
type StreamOptions struct {
	// ChunkSize overrides the default compressed-data read chunk size
	// (zipio.DefaultChunkSize) when positive.
	ChunkSize int64
}

// Archive is the immutable handle produced by Open: a backing store plus
// the ordered entry mapping recovered from its central directory (§3). It
// holds no file-system resources of its own; closing the store is the
// caller's responsibility.
type Archive struct {
	store   backend.Store
	entries *orderedEntries
	log     *logrus.Logger
}

// Option configures Open.
type Option func(*Archive)

// WithLogger attaches a logger used for operational messages encountered
// while opening the archive. Nil-safe: a nil *logrus.Logger means no
// logging, not a panic.
func WithLogger(log *logrus.Logger) Option {
	return func(a *Archive) { a.log = log }
}

// Open performs the EOCD locate and central-directory parse eagerly (§4.6),
// returning an immutable archive handle or the first error encountered.
func Open(ctx context.Context, store backend.Store, opts ...Option) (*Archive, error) {
	a := &Archive{store: store}
	for _, opt := range opts {
		opt(a)
	}

	size, err := store.Size(ctx)
	if err != nil {
		return nil, AdapterError{Err: err}
	}

	rec, err := locateEOCD(ctx, store, size, a.log)
	if err != nil {
		return nil, err
	}
	if a.log != nil {
		a.log.WithFields(logrus.Fields{
			"total_entries": rec.totalEntries,
			"cd_offset":     rec.cdOffset,
			"cd_size":       rec.cdSize,
		}).Debug("located end-of-central-directory record")
	}

	entries, err := parseCentralDirectory(ctx, store, size, rec, a.log)
	if err != nil {
		return nil, err
	}
	a.entries = entries
	return a, nil
}

// List returns the public view of every entry in central-directory
// insertion order (§4.6, §8 "Idempotence of list"). Repeated calls return
// an equal sequence: the underlying slice is never mutated after Open.
func (a *Archive) List() []Entry {
	views := make([]Entry, len(a.entries.all))
	for i, e := range a.entries.all {
		views[i] = e.publicView()
	}
	return views
}

// Stream returns the lazy, decompressing, CRC-checked byte sequence for
// the named entry (§4.5). Recognised option: ChunkSize.
func (a *Archive) Stream(ctx context.Context, name string, opts ...StreamOptions) (*EntryStream, error) {
	e, ok := a.entries.get(name)
	if !ok {
		return nil, EntryNotFoundError{Name: name}
	}

	chunkSize := int64(zipio.DefaultChunkSize)
	for _, o := range opts {
		if o.ChunkSize > 0 {
			chunkSize = o.ChunkSize
		}
	}

	stream, err := openEntryStream(ctx, a.store, e, chunkSize)
	if err != nil {
		if a.log != nil {
			a.log.WithError(err).WithField("entry", name).Warn("failed to open entry stream")
		}
		return nil, err
	}
	return stream, nil
}
