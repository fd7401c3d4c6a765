package archive

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/alec-rabold/zipspy/pkg/backend/mem"
)

func readAll(t *testing.T, s *EntryStream) []byte {
	t.Helper()
	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return out
}

func TestStream_RoundTrip_Stored(t *testing.T) {
	want := []byte("The rain in Spain stays mainly in the plain\n")
	raw := buildZip([]fixtureFile{{name: "quotes/rain.txt", method: MethodStored, data: want}})

	ctx := context.Background()
	a, err := Open(ctx, mem.New(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := a.Stream(ctx, "quotes/rain.txt")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer s.Close()

	got := readAll(t, s)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStream_RoundTrip_Deflate(t *testing.T) {
	want := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 200)
	raw := buildZip([]fixtureFile{{name: "f", method: MethodDeflate, data: want}})

	ctx := context.Background()
	a, err := Open(ctx, mem.New(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := a.Stream(ctx, "f")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer s.Close()

	got := readAll(t, s)
	if !bytes.Equal(got, want) {
		t.Fatalf("round-trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestStream_ChunkSizePlumbing(t *testing.T) {
	want := bytes.Repeat([]byte("x"), 1000)
	raw := buildZip([]fixtureFile{{name: "f", method: MethodStored, data: want}})

	ctx := context.Background()
	a, err := Open(ctx, mem.New(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := a.Stream(ctx, "f", StreamOptions{ChunkSize: 100})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer s.Close()

	buf := make([]byte, 1000)
	n, err := s.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if n != 100 {
		t.Fatalf("first chunk length = %d, want exactly 100", n)
	}
}

func TestStream_EntryNotFound(t *testing.T) {
	raw := buildZip([]fixtureFile{{name: "a", method: MethodStored, data: []byte("x")}})
	ctx := context.Background()
	a, err := Open(ctx, mem.New(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.Stream(ctx, "missing"); err != (EntryNotFoundError{Name: "missing"}) {
		t.Fatalf("expected EntryNotFoundError, got %v", err)
	}
}

func TestStream_UnsupportedCompression(t *testing.T) {
	raw := buildZip([]fixtureFile{{name: "abc.txt", method: MethodStored, data: []byte("x")}})
	off := findCentralDirectoryFileHeader(raw, "abc.txt")
	if off < 0 {
		t.Fatalf("fixture setup: couldn't find CD file header")
	}
	// compression_method lives at CD header bytes 10:12.
	patchUint16LE(raw, off+10, 30840)

	ctx := context.Background()
	a, err := Open(ctx, mem.New(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := a.Stream(ctx, "abc.txt")
	if err != nil {
		t.Fatalf("Stream (facade opens successfully even with a bad method): %v", err)
	}
	defer s.Close()

	_, err = s.Read(make([]byte, 16))
	want := UnsupportedCompressionError{Method: 30840}
	if err != want {
		t.Fatalf("Read error = %v, want %v", err, want)
	}
}

func TestStream_CRCMismatch(t *testing.T) {
	raw := buildZip([]fixtureFile{{name: "f", method: MethodStored, data: []byte("hello world")}})

	// Corrupt one byte of the stored (uncompressed) payload in place,
	// leaving the CD's recorded CRC-32 stale.
	localSig := []byte{0x50, 0x4b, 0x03, 0x04}
	idx := bytes.Index(raw, localSig)
	if idx < 0 {
		t.Fatalf("fixture setup: couldn't find local file header")
	}
	nameLen := int(raw[idx+26]) | int(raw[idx+27])<<8
	extraLen := int(raw[idx+28]) | int(raw[idx+29])<<8
	dataStart := idx + 30 + nameLen + extraLen
	raw[dataStart] ^= 0xff

	ctx := context.Background()
	a, err := Open(ctx, mem.New(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := a.Stream(ctx, "f")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer s.Close()

	_, err = io.ReadAll(s)
	if _, ok := err.(CRCMismatchError); !ok {
		t.Fatalf("expected CRCMismatchError, got %v", err)
	}
}
