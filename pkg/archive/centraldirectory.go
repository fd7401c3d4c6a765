package archive

import (
	"context"
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/alec-rabold/zipspy/pkg/backend"
	"github.com/alec-rabold/zipspy/pkg/zipio"
)

const (
	cdSignature  = 0x02014b50
	cdFixedLen   = 46
	zip64ExtraID = 0x0001
	sentinel32   = 0xFFFFFFFF
)

// orderedEntries holds parsed central-directory entries plus the name-to-
// index mapping used for lookups, preserving insertion order for List
// (§4.9 "Duplicate entry names").
type orderedEntries struct {
	byName map[string]int
	all    []entry
}

func newOrderedEntries() *orderedEntries {
	return &orderedEntries{byName: make(map[string]int)}
}

func (o *orderedEntries) put(e entry) {
	if idx, ok := o.byName[e.name]; ok {
		o.all[idx] = e
		return
	}
	o.byName[e.name] = len(o.all)
	o.all = append(o.all, e)
}

func (o *orderedEntries) get(name string) (entry, bool) {
	idx, ok := o.byName[name]
	if !ok {
		return entry{}, false
	}
	return o.all[idx], true
}

// parseCentralDirectory implements §4.3: decode cd.totalEntries fixed-46-
// byte headers with variable tails, merging ZIP64 overrides and rejecting
// any pair of entries whose local-header/compressed-size ranges overlap.
func parseCentralDirectory(ctx context.Context, store backend.Store, size int64, rec eocdRecord, log *logrus.Logger) (*orderedEntries, error) {
	buf := zipio.NewForward(ctx, store, size, int64(rec.cdOffset), int64(rec.cdOffset+rec.cdSize), zipio.DefaultChunkSize, zipio.WithLogger(log))
	entries := newOrderedEntries()
	tree := zipio.NewRangeTree(zipio.WithTreeLogger(log))

	for i := uint64(0); i < rec.totalEntries; i++ {
		nb, header, err := buf.NextChunk(cdFixedLen)
		if err != nil {
			return nil, remapShortRead(err, i == 0)
		}

		signature := binary.LittleEndian.Uint32(header[0:4])
		if signature != cdSignature {
			if i == 0 {
				return nil, InvalidCDFileHeaderError{}
			}
			return nil, InvalidCentralDirectoryError{}
		}

		bitFlag := binary.LittleEndian.Uint16(header[8:10])
		method := binary.LittleEndian.Uint16(header[10:12])
		modTime := binary.LittleEndian.Uint16(header[12:14])
		modDate := binary.LittleEndian.Uint16(header[14:16])
		crc := binary.LittleEndian.Uint32(header[16:20])
		compressedSize32 := binary.LittleEndian.Uint32(header[20:24])
		uncompressedSize32 := binary.LittleEndian.Uint32(header[24:28])
		nameLen := binary.LittleEndian.Uint16(header[28:30])
		extraLen := binary.LittleEndian.Uint16(header[30:32])
		commentLen := binary.LittleEndian.Uint16(header[32:34])
		localHeaderOffset32 := binary.LittleEndian.Uint32(header[42:46])

		nb, err = nb.MoveForwardBy(cdFixedLen)
		if err != nil {
			return nil, remapShortRead(err, i == 0)
		}

		tailLen := int64(nameLen) + int64(extraLen) + int64(commentLen)
		var name string
		var extra []byte
		if tailLen > 0 {
			var tail []byte
			nb, tail, err = nb.NextChunk(tailLen)
			if err != nil {
				return nil, remapShortRead(err, i == 0)
			}
			name = string(tail[0:nameLen])
			extra = tail[nameLen : nameLen+extraLen]

			nb, err = nb.MoveForwardBy(tailLen)
			if err != nil {
				return nil, remapShortRead(err, i == 0)
			}
		}
		buf = nb

		e := entry{
			name:              name,
			bitFlag:           bitFlag,
			compressionMethod: method,
			modified:          decodeMSDOSTime(modDate, modTime),
			crc32:             crc,
			compressedSize:    uint64(compressedSize32),
			uncompressedSize:  uint64(uncompressedSize32),
			localHeaderOffset: uint64(localHeaderOffset32),
		}
		if err := mergeZip64(&e, compressedSize32, uncompressedSize32, localHeaderOffset32, extra); err != nil {
			return nil, err
		}

		if tree.Overlap(int64(e.localHeaderOffset), int64(e.compressedSize)) {
			return nil, OverlappingEntriesError{}
		}
		tree.Insert(int64(e.localHeaderOffset), int64(e.compressedSize))

		entries.put(e)
	}

	if buf.Pos() != int64(rec.cdOffset+rec.cdSize) {
		return nil, InvalidCentralDirectoryError{}
	}

	return entries, nil
}

// remapShortRead implements §4.3 step 3: a short read from the buffer
// becomes InvalidCentralDirectory once at least one record has already
// been read successfully; a short read on the very first record indicates
// the leading signature itself couldn't be verified.
func remapShortRead(err error, firstRecord bool) error {
	if err == zipio.ErrShortRead {
		if firstRecord {
			return InvalidCDFileHeaderError{}
		}
		return InvalidCentralDirectoryError{}
	}
	return AdapterError{Err: err}
}

// mergeZip64 implements §3 invariant 3 / §4.3 step c: any 32-bit field
// sentinelled to 0xFFFFFFFF is replaced from the ZIP64 extra field (id
// 0x0001), consuming overrides in the fixed order [uncompressed,
// compressed, offset], skipping fields that aren't actually sentinelled.
func mergeZip64(e *entry, compressed32, uncompressed32, offset32 uint32, extra []byte) error {
	needUncompressed := uncompressed32 == sentinel32
	needCompressed := compressed32 == sentinel32
	needOffset := offset32 == sentinel32
	if !needUncompressed && !needCompressed && !needOffset {
		return nil
	}

	for i := 0; i+4 <= len(extra); {
		id := binary.LittleEndian.Uint16(extra[i : i+2])
		size := int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if i+4+size > len(extra) {
			break
		}
		field := extra[i+4 : i+4+size]
		if id != zip64ExtraID {
			i += 4 + size
			continue
		}

		pos := 0
		if needUncompressed {
			if pos+8 > len(field) {
				return InvalidCentralDirectoryError{}
			}
			e.uncompressedSize = binary.LittleEndian.Uint64(field[pos : pos+8])
			pos += 8
			needUncompressed = false
		}
		if needCompressed {
			if pos+8 > len(field) {
				return InvalidCentralDirectoryError{}
			}
			e.compressedSize = binary.LittleEndian.Uint64(field[pos : pos+8])
			pos += 8
			needCompressed = false
		}
		if needOffset {
			if pos+8 > len(field) {
				return InvalidCentralDirectoryError{}
			}
			e.localHeaderOffset = binary.LittleEndian.Uint64(field[pos : pos+8])
			pos += 8
			needOffset = false
		}
		if needUncompressed || needCompressed || needOffset {
			return InvalidCentralDirectoryError{}
		}
		return nil
	}
	return InvalidCentralDirectoryError{}
}
