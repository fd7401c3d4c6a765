package archive

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/alec-rabold/zipspy/pkg/backend/mem"
)

func TestLocateEOCD_SimpleArchive(t *testing.T) {
	raw := buildZip([]fixtureFile{{name: "abc.txt", method: MethodDeflate, data: []byte("hello world")}})
	store := mem.New(raw)
	ctx := context.Background()

	size, err := store.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	rec, err := locateEOCD(ctx, store, size, nil)
	if err != nil {
		t.Fatalf("locateEOCD: %v", err)
	}
	if rec.totalEntries != 1 {
		t.Fatalf("totalEntries = %d, want 1", rec.totalEntries)
	}
}

func TestLocateEOCD_MissingEOCD(t *testing.T) {
	raw := []byte("this is not a zip file at all, no signature here")
	store := mem.New(raw)
	ctx := context.Background()
	size, _ := store.Size(ctx)

	if _, err := locateEOCD(ctx, store, size, nil); err != (MissingEOCDError{}) {
		t.Fatalf("expected MissingEOCDError, got %v", err)
	}
}

func TestLocateEOCD_RejectsBeyondCommentCap(t *testing.T) {
	raw := buildZip([]fixtureFile{{name: "a", method: MethodStored, data: []byte("x")}})
	// Append a comment long enough to push the EOCD signature past the
	// 5 MiB cap; the real EOCD record's declared comment length won't
	// match what locateEOCD actually consumed once it gives up at the cap,
	// so this must fail with MissingEOCD rather than finding a false match.
	huge := make([]byte, maxCommentScan+1024)
	store := mem.New(append(raw, huge...))
	ctx := context.Background()
	size, _ := store.Size(ctx)

	if _, err := locateEOCD(ctx, store, size, nil); err != (MissingEOCDError{}) {
		t.Fatalf("expected MissingEOCDError for over-cap comment, got %v", err)
	}
}

func TestLocateEOCD_ConformingComment(t *testing.T) {
	raw := buildZip([]fixtureFile{{name: "a", method: MethodStored, data: []byte("x")}})
	// Give the archive a trailing comment whose length is recorded in the
	// EOCD's comment_length field.
	comment := []byte("archive comment")
	patchUint16LE(raw, len(raw)-2, uint16(len(comment)))
	raw = append(raw, comment...)
	store := mem.New(raw)
	ctx := context.Background()
	size, _ := store.Size(ctx)

	rec, err := locateEOCD(ctx, store, size, nil)
	if err != nil {
		t.Fatalf("locateEOCD: %v", err)
	}
	if rec.cdSize == 0 {
		t.Fatalf("expected non-zero cdSize")
	}
}

// TestLocateEOCD_UpgradesToZip64 drives the real upgradeToZip64 path by
// splicing a ZIP64 EOCD record and locator immediately before a normal
// archive's trailing 32-bit EOCD, then corrupting the 32-bit EOCD's own
// totalEntries/cdSize/cdOffset fields. The 32-bit values alone would make
// parsing fail or return the wrong entry count, so a successful Open/List
// with the correct entries can only happen if locateEOCD actually replaced
// them with the ZIP64 record's 64-bit fields.
func TestLocateEOCD_UpgradesToZip64(t *testing.T) {
	files := []fixtureFile{
		{name: "a", method: MethodStored, data: []byte("aaa")},
		{name: "b", method: MethodStored, data: []byte("bbbbb")},
	}
	raw := buildZip(files)

	eocdOff := len(raw) - eocdRecordLen
	trueTotalEntries := binary.LittleEndian.Uint16(raw[eocdOff+10 : eocdOff+12])
	trueCDSize := binary.LittleEndian.Uint32(raw[eocdOff+12 : eocdOff+16])
	trueCDOffset := binary.LittleEndian.Uint32(raw[eocdOff+16 : eocdOff+20])

	zip64Record := make([]byte, eocd64RecordLen)
	binary.LittleEndian.PutUint32(zip64Record[0:4], eocd64Signature)
	binary.LittleEndian.PutUint64(zip64Record[4:12], uint64(eocd64RecordLen-12))
	binary.LittleEndian.PutUint64(zip64Record[32:40], uint64(trueTotalEntries))
	binary.LittleEndian.PutUint64(zip64Record[40:48], uint64(trueCDSize))
	binary.LittleEndian.PutUint64(zip64Record[48:56], uint64(trueCDOffset))
	zip64RecordOffset := int64(eocdOff)

	locator := make([]byte, eocd64LocatorLen)
	binary.LittleEndian.PutUint32(locator[0:4], eocd64LocatorSig)
	binary.LittleEndian.PutUint64(locator[8:16], uint64(zip64RecordOffset))

	corruptEOCD := append([]byte{}, raw[eocdOff:]...)
	binary.LittleEndian.PutUint16(corruptEOCD[10:12], 9999)
	binary.LittleEndian.PutUint32(corruptEOCD[12:16], 0xdeadbeef)
	binary.LittleEndian.PutUint32(corruptEOCD[16:20], 0xdeadbeef)

	patched := append([]byte{}, raw[:eocdOff]...)
	patched = append(patched, zip64Record...)
	patched = append(patched, locator...)
	patched = append(patched, corruptEOCD...)

	ctx := context.Background()
	size := int64(len(patched))

	rec, err := locateEOCD(ctx, mem.New(patched), size, nil)
	if err != nil {
		t.Fatalf("locateEOCD: %v", err)
	}
	if rec.totalEntries != uint64(trueTotalEntries) {
		t.Fatalf("totalEntries = %d, want %d (the ZIP64 record's value, not the corrupted 32-bit one)", rec.totalEntries, trueTotalEntries)
	}
	if rec.cdSize != uint64(trueCDSize) {
		t.Fatalf("cdSize = %d, want %d", rec.cdSize, trueCDSize)
	}
	if rec.cdOffset != uint64(trueCDOffset) {
		t.Fatalf("cdOffset = %d, want %d", rec.cdOffset, trueCDOffset)
	}

	a, err := Open(ctx, mem.New(patched))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries := a.List()
	if len(entries) != len(files) {
		t.Fatalf("got %d entries, want %d", len(entries), len(files))
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	for _, f := range files {
		if !names[f.name] {
			t.Fatalf("missing entry %q after ZIP64 upgrade", f.name)
		}
	}
}
