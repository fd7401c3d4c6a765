package archive

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/alec-rabold/zipspy/pkg/backend"
	"github.com/alec-rabold/zipspy/pkg/zipio"
)

const localHeaderFixedLen = 30
const localHeaderSignature = 0x04034b50

// streamState is the per-entry-stream state machine of §4.5: Init lazily
// becomes Reading on first demand, Finalising runs once the compressed
// input is exhausted, and Done/Failed are terminal.
type streamState int

const (
	stateInit streamState = iota
	stateReading
	stateFinalising
	stateDone
	stateFailed
)

// chunkSource is the "chunk reader" stage of §4.5 step 4: it issues
// positional reads across the compressed range, each sized by the caller's
// buffer and capped at chunkSize and at the end of the range. A read is
// exactly chunkSize bytes long only when the caller's buffer holds at least
// chunkSize bytes and that much of the range remains; smaller caller
// buffers give shorter reads.
type chunkSource struct {
	ctx       context.Context
	store     backend.Store
	offset    int64
	end       int64
	chunkSize int64
}

func (c *chunkSource) Read(p []byte) (int, error) {
	if c.offset >= c.end {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > c.chunkSize {
		n = c.chunkSize
	}
	if c.offset+n > c.end {
		n = c.end - c.offset
	}
	read, err := c.store.ReadAt(c.ctx, p[:n], c.offset)
	c.offset += int64(read)
	if err != nil {
		return read, AdapterError{Err: err}
	}
	return read, nil
}

// EntryStream is the lazy, single-shot, pull-driven byte-chunk sequence
// returned by Stream (§4.5). It is not safe for concurrent use and is not
// restartable.
type EntryStream struct {
	src         *chunkSource
	method      uint16
	expectedCRC uint32
	inflater    io.ReadCloser
	crc         uint32
	state       streamState
	err         error
}

// Read implements io.Reader. The CRC-32 check runs as a terminal step the
// moment the underlying decompressor reports EOF, never skipped on full
// consumption (§4.5 step 5); a caller that abandons the stream early simply
// never triggers it, per §4.5's note on early abandonment.
func (s *EntryStream) Read(p []byte) (int, error) {
	switch s.state {
	case stateFailed:
		return 0, s.err
	case stateDone:
		return 0, io.EOF
	case stateInit:
		if s.method != MethodStored && s.method != MethodDeflate {
			s.state = stateFailed
			s.err = UnsupportedCompressionError{Method: s.method}
			return 0, s.err
		}
		if s.method == MethodDeflate {
			s.inflater = zipio.NewInflater(s.src)
		}
		s.state = stateReading
	}

	var reader io.Reader = s.src
	if s.method == MethodDeflate {
		reader = s.inflater
	}

	n, err := reader.Read(p)
	if n > 0 {
		s.crc = crc32.Update(s.crc, crc32.IEEETable, p[:n])
	}
	if err == nil {
		return n, nil
	}
	if err != io.EOF {
		s.state = stateFailed
		s.err = AdapterError{Err: err}
		return n, s.err
	}

	s.state = stateFinalising
	if ferr := s.finalize(); ferr != nil {
		s.state = stateFailed
		s.err = ferr
		if n > 0 {
			return n, nil
		}
		return 0, ferr
	}
	s.state = stateDone
	return n, io.EOF
}

// finalize closes the scoped inflater resource and performs the terminal
// CRC-32 comparison (§4.5 step 4 "CRC verifier", invariant 4).
func (s *EntryStream) finalize() error {
	if s.inflater != nil {
		if err := s.inflater.Close(); err != nil {
			return AdapterError{Err: err}
		}
	}
	if s.crc != s.expectedCRC {
		return CRCMismatchError{Expected: s.expectedCRC, Got: s.crc}
	}
	return nil
}

// Close releases the inflater regardless of how far the stream progressed,
// matching §5's "scoped acquisition... released on terminal states
// Done/Failed or on sequence drop".
func (s *EntryStream) Close() error {
	if s.state == stateDone {
		return nil
	}
	if s.state != stateFailed {
		s.state = stateFailed
		if s.err == nil {
			s.err = io.ErrClosedPipe
		}
	}
	if s.inflater != nil {
		return s.inflater.Close()
	}
	return nil
}

// openEntryStream implements §4.5 steps 1-3: re-read the local file header
// to locate the true start of the compressed range (the local header's own
// size fields are ignored; the central directory is authoritative), then
// construct the chunked, decompressing, CRC-checked stream over it.
func openEntryStream(ctx context.Context, store backend.Store, e entry, chunkSize int64) (*EntryStream, error) {
	if chunkSize <= 0 {
		chunkSize = zipio.DefaultChunkSize
	}

	header := make([]byte, localHeaderFixedLen)
	if _, err := store.ReadAt(ctx, header, int64(e.localHeaderOffset)); err != nil {
		return nil, AdapterError{Err: err}
	}
	if binary.LittleEndian.Uint32(header[0:4]) != localHeaderSignature {
		return nil, InvalidCDFileHeaderError{}
	}
	nameLen := binary.LittleEndian.Uint16(header[26:28])
	extraLen := binary.LittleEndian.Uint16(header[28:30])

	start := int64(e.localHeaderOffset) + localHeaderFixedLen + int64(nameLen) + int64(extraLen)
	end := start + int64(e.compressedSize)

	return &EntryStream{
		src: &chunkSource{
			ctx:       ctx,
			store:     store,
			offset:    start,
			end:       end,
			chunkSize: chunkSize,
		},
		method:      e.compressionMethod,
		expectedCRC: e.crc32,
		state:       stateInit,
	}, nil
}
