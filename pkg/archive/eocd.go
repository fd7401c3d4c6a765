package archive

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alec-rabold/zipspy/pkg/backend"
	"github.com/alec-rabold/zipspy/pkg/zipio"
)

const (
	eocdSignature    = 0x06054b50
	eocd64LocatorSig = 0x07064b50
	eocd64Signature  = 0x06064b50
	eocdRecordLen    = 22
	eocd64LocatorLen = 20
	eocd64RecordLen  = 56
	maxCommentScan   = 5 * 1024 * 1024
)

// eocdRecord is the transient End-Of-Central-Directory summary (§3):
// computed once during open and not retained on the archive handle
// afterward.
type eocdRecord struct {
	totalEntries uint64
	cdSize       uint64
	cdOffset     uint64
}

// locateEOCD implements §4.2: a byte-by-byte backward scan bounded by a
// 5 MiB comment cap, followed by an optional ZIP64 upgrade.
func locateEOCD(ctx context.Context, store backend.Store, size int64, log *logrus.Logger) (eocdRecord, error) {
	buf := zipio.NewBackward(ctx, store, size, zipio.DefaultChunkSize, zipio.WithLogger(log))

	var consumed int64
	for {
		if consumed > maxCommentScan {
			return eocdRecord{}, MissingEOCDError{}
		}

		nb, chunk, err := buf.NextChunk(eocdRecordLen)
		if err != nil {
			if err == zipio.ErrShortRead {
				return eocdRecord{}, MissingEOCDError{}
			}
			return eocdRecord{}, AdapterError{Err: err}
		}

		if binary.LittleEndian.Uint32(chunk[0:4]) == eocdSignature {
			commentLen := binary.LittleEndian.Uint16(chunk[20:22])
			if int64(commentLen) == consumed {
				rec := eocdRecord{
					totalEntries: uint64(binary.LittleEndian.Uint16(chunk[10:12])),
					cdSize:       uint64(binary.LittleEndian.Uint32(chunk[12:16])),
					cdOffset:     uint64(binary.LittleEndian.Uint32(chunk[16:20])),
				}
				restored, err := nb.MoveBackwardBy(eocdRecordLen)
				if err != nil {
					return eocdRecord{}, fmt.Errorf("archive: restoring buffer after EOCD match: %w", err)
				}
				return upgradeToZip64(ctx, store, restored, rec)
			}
		}

		nb, err = nb.MoveBackwardBy(1)
		if err != nil {
			return eocdRecord{}, MissingEOCDError{}
		}
		buf = nb
		consumed++
	}
}

// upgradeToZip64 implements §4.2 step 4: if a ZIP64 EOCD locator
// immediately precedes the 32-bit EOCD, replace the record with the 64-bit
// ZIP64 EOCD it points to.
func upgradeToZip64(ctx context.Context, store backend.Store, buf zipio.Buffer, rec eocdRecord) (eocdRecord, error) {
	nb, chunk, err := buf.NextChunk(eocd64LocatorLen)
	if err == zipio.ErrShortRead {
		return rec, nil
	}
	if err != nil {
		return eocdRecord{}, AdapterError{Err: err}
	}
	if binary.LittleEndian.Uint32(chunk[0:4]) != eocd64LocatorSig {
		return rec, nil
	}
	_ = nb // locator fully consumed; no further backward reads needed

	eocdOffset := int64(binary.LittleEndian.Uint64(chunk[8:16]))

	rec64 := make([]byte, eocd64RecordLen)
	if _, err := store.ReadAt(ctx, rec64, eocdOffset); err != nil {
		return eocdRecord{}, AdapterError{Err: err}
	}
	if binary.LittleEndian.Uint32(rec64[0:4]) != eocd64Signature {
		return eocdRecord{}, MissingEOCDError{}
	}

	return eocdRecord{
		totalEntries: binary.LittleEndian.Uint64(rec64[32:40]),
		cdSize:       binary.LittleEndian.Uint64(rec64[40:48]),
		cdOffset:     binary.LittleEndian.Uint64(rec64[48:56]),
	}, nil
}
