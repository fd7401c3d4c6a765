// Package zipio holds the low-level, backend-agnostic plumbing shared by
// the central-directory locator and parser: a coalescing bidirectional
// read window over a backend.Store, an interval tree used for zip-bomb
// defense, and the streaming raw-DEFLATE decompressor used by entry
// streams.
package zipio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"

	"github.com/alec-rabold/zipspy/pkg/backend"

	"context"
)

// DefaultChunkSize is the default coalescing chunk size used by Buffer, and
// the default compressed-data read chunk size used by entry streams.
const DefaultChunkSize = 65_000

var (
	// ErrShortRead is returned by NextChunk when the addressable range
	// (bounded by offset 0 on the backward side, or Limit on the forward
	// side) contains fewer than the requested number of bytes.
	ErrShortRead = errors.New("zipio: short read")

	// ErrInvalidCount is returned by MoveBackwardBy/MoveForwardBy when the
	// requested count exceeds the bytes currently buffered.
	ErrInvalidCount = errors.New("zipio: invalid move count")
)

// fetchBytes stages a positional read through a pooled scratch buffer
// (avoiding a fresh allocation per coalesced fetch) and returns an owned
// copy sized exactly n: the pooled buffer is returned to the pool before
// fetchBytes returns, so its backing array must not escape.
func fetchBytes(ctx context.Context, store backend.Store, off, n int64) ([]byte, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	if int64(cap(bb.B)) < n {
		bb.B = make([]byte, n)
	} else {
		bb.B = bb.B[:n]
	}

	if _, err := store.ReadAt(ctx, bb.B, off); err != nil {
		return nil, err
	}
	owned := make([]byte, n)
	copy(owned, bb.B)
	return owned, nil
}

// direction selects whether a Buffer's window grows backward from the end
// of the store (used by the EOCD locator) or forward from a starting
// offset (used by the central-directory parser).
type direction int

const (
	backward direction = iota
	forward
)

// Buffer is a sliding read window over a backend.Store that amortises
// positional reads into large coalesced ranges. It has value semantics:
// every operation returns a new Buffer reflecting the updated window: no
// method mutates the receiver in a way visible to other holders of the
// same value.
type Buffer struct {
	ctx       context.Context
	store     backend.Store
	dir       direction
	chunkSize int64
	size      int64 // total backing-store size
	limit     int64 // upper bound for forward buffers; unused (== size) for backward

	data      []byte // cached, contiguous bytes
	dataStart int64  // absolute store offset of data[0]

	// pos is the logical cursor: for a backward buffer it is the absolute
	// offset of the window's end (shrinks toward 0 as bytes are consumed);
	// for a forward buffer it is the absolute offset of the window's start
	// (grows toward limit as bytes are consumed).
	pos int64

	log *logrus.Logger
}

// Option configures a Buffer at construction time.
type Option func(*Buffer)

// WithLogger attaches a logger used to report backing-store fetch failures.
// Nil-safe: a nil *logrus.Logger (or omitting the option) means no logging.
func WithLogger(log *logrus.Logger) Option {
	return func(b *Buffer) { b.log = log }
}

// NewBackward constructs a Buffer for the EOCD locator's backward scan: the
// window starts positioned at end-of-file with nothing yet consumed.
func NewBackward(ctx context.Context, store backend.Store, size int64, chunkSize int64, opts ...Option) Buffer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	b := Buffer{
		ctx:       ctx,
		store:     store,
		dir:       backward,
		chunkSize: chunkSize,
		size:      size,
		limit:     size,
		pos:       size,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// NewForward constructs a Buffer for the central-directory parser's forward
// scan: the window starts positioned at start, and NextChunk/MoveForwardBy
// never address bytes at or past limit.
func NewForward(ctx context.Context, store backend.Store, size, start, limit, chunkSize int64, opts ...Option) Buffer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	b := Buffer{
		ctx:       ctx,
		store:     store,
		dir:       forward,
		chunkSize: chunkSize,
		size:      size,
		limit:     limit,
		data:      nil,
		dataStart: start,
		pos:       start,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Pos returns the buffer's current logical cursor: for a backward buffer,
// the absolute offset of the window's end; for a forward buffer, the
// absolute offset of the window's start.
func (b Buffer) Pos() int64 { return b.pos }

// bufferedBacklog returns how many bytes between dataStart and pos (backward)
// or pos and dataEnd (forward) are already resident in memory, i.e. how far
// Move*By can shift the cursor without issuing a read.
func (b Buffer) bufferedBacklog() int64 {
	switch b.dir {
	case backward:
		return b.pos - b.dataStart
	default:
		return (b.dataStart + int64(len(b.data))) - b.pos
	}
}

// NextChunk returns up to n bytes: for a backward buffer, the n bytes
// immediately preceding the window end; for a forward buffer, the n bytes
// immediately following the window start. It does not itself advance pos;
// callers follow up with MoveBackwardBy/MoveForwardBy to consume what they
// read. It returns ErrShortRead if the addressable range holds fewer than n
// bytes and fetches more from the store (coalesced to max(chunkSize, n))
// when the cached window doesn't yet cover the request.
func (b Buffer) NextChunk(n int64) (Buffer, []byte, error) {
	if n <= 0 {
		return b, nil, fmt.Errorf("zipio: NextChunk requires n > 0, got %d", n)
	}
	switch b.dir {
	case backward:
		return b.nextChunkBackward(n)
	default:
		return b.nextChunkForward(n)
	}
}

func (b Buffer) nextChunkBackward(n int64) (Buffer, []byte, error) {
	if b.pos-n < 0 {
		return b, nil, ErrShortRead
	}
	want := b.pos - n
	dataEnd := b.dataStart + int64(len(b.data))
	if len(b.data) > 0 && want >= b.dataStart && b.pos <= dataEnd {
		start := want - b.dataStart
		return b, b.data[start : start+n], nil
	}

	// fetchEnd is the far edge of the already-cached region we can splice
	// new bytes onto: end-of-file on the very first fetch (nothing cached
	// yet), or the current start of the cached region otherwise (we only
	// ever grow a backward buffer by prepending).
	fetchEnd := b.pos
	if len(b.data) > 0 {
		fetchEnd = b.dataStart
	}

	fetchLen := n
	if b.chunkSize > fetchLen {
		fetchLen = b.chunkSize
	}
	newStart := fetchEnd - fetchLen
	if newStart < 0 {
		newStart = 0
	}
	if newStart > want {
		newStart = want
	}

	fresh, err := fetchBytes(b.ctx, b.store, newStart, fetchEnd-newStart)
	if err != nil {
		if b.log != nil {
			b.log.WithError(err).WithField("offset", newStart).Warn("zipio: backward fetch failed")
		}
		return b, nil, fmt.Errorf("zipio: backward fetch at %d: %w", newStart, err)
	}
	nb := b
	nb.data = append(fresh, b.data...)
	nb.dataStart = newStart

	start := nb.pos - n - nb.dataStart
	return nb, nb.data[start : start+n], nil
}

func (b Buffer) nextChunkForward(n int64) (Buffer, []byte, error) {
	if b.pos+n > b.limit {
		return b, nil, ErrShortRead
	}
	dataEnd := b.dataStart + int64(len(b.data))
	if b.pos+n <= dataEnd {
		start := b.pos - b.dataStart
		return b, b.data[start : start+n], nil
	}

	fetchLen := n
	if b.chunkSize > fetchLen {
		fetchLen = b.chunkSize
	}
	newEnd := b.pos + fetchLen
	if newEnd > b.limit {
		newEnd = b.limit
	}
	if newEnd > b.size {
		newEnd = b.size
	}
	fetchStart := dataEnd
	if len(b.data) == 0 {
		fetchStart = b.pos
	}
	fresh, err := fetchBytes(b.ctx, b.store, fetchStart, newEnd-fetchStart)
	if err != nil {
		if b.log != nil {
			b.log.WithError(err).WithField("offset", fetchStart).Warn("zipio: forward fetch failed")
		}
		return b, nil, fmt.Errorf("zipio: forward fetch at %d: %w", fetchStart, err)
	}
	nb := b
	nb.data = append(b.data, fresh...)

	start := nb.pos - nb.dataStart
	if start+n > int64(len(nb.data)) {
		return b, nil, ErrShortRead
	}
	return nb, nb.data[start : start+n], nil
}

// MoveBackwardBy shrinks a backward buffer's window by dropping k trailing
// bytes (i.e. moving the window end k bytes closer to the start of the
// store). It fails with ErrInvalidCount if k exceeds the currently buffered
// backlog.
func (b Buffer) MoveBackwardBy(k int64) (Buffer, error) {
	if b.dir != backward {
		return b, fmt.Errorf("zipio: MoveBackwardBy called on a forward buffer")
	}
	if k < 0 || k > b.bufferedBacklog() {
		return b, ErrInvalidCount
	}
	nb := b
	nb.pos -= k
	return nb, nil
}

// MoveForwardBy advances a forward buffer's window start by k bytes. It
// fails with ErrInvalidCount if k exceeds the currently buffered backlog.
func (b Buffer) MoveForwardBy(k int64) (Buffer, error) {
	if b.dir != forward {
		return b, fmt.Errorf("zipio: MoveForwardBy called on a backward buffer")
	}
	if k < 0 || k > b.bufferedBacklog() {
		return b, ErrInvalidCount
	}
	nb := b
	nb.pos += k
	return nb, nil
}
