package archive

import "fmt"

// MissingEOCDError is returned when open cannot locate an End-Of-Central-
// Directory record within the trailing 5 MiB comment cap.
type MissingEOCDError struct{}

func (MissingEOCDError) Error() string { return "Invalid zip file, missing EOCD record" }

// InvalidCentralDirectoryError is returned when the central directory ends
// short of its declared size, or a record's signature doesn't match
// mid-parse.
type InvalidCentralDirectoryError struct{}

func (InvalidCentralDirectoryError) Error() string {
	return "Invalid zip file, invalid central directory"
}

// InvalidCDFileHeaderError is returned when the very first central-
// directory file header's signature doesn't match or the first record is
// cut short, and by Stream when an entry's local file header signature
// doesn't match.
type InvalidCDFileHeaderError struct{}

func (InvalidCDFileHeaderError) Error() string {
	return "Invalid zip file, invalid central directory file header"
}

// OverlappingEntriesError is returned when the range tree detects that two
// entries claim overlapping compressed-data ranges.
type OverlappingEntriesError struct{}

func (OverlappingEntriesError) Error() string {
	return "Invalid zip file, found overlapping zip entries"
}

// UnsupportedCompressionError is returned when an entry's compression
// method is neither STORED (0) nor DEFLATE (8).
type UnsupportedCompressionError struct {
	Method uint16
}

func (e UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("Compression method %d is not supported", e.Method)
}

// EntryNotFoundError is returned by Stream when name isn't in the archive.
type EntryNotFoundError struct {
	Name string
}

func (e EntryNotFoundError) Error() string {
	return fmt.Sprintf("File %s not present in the zip", e.Name)
}

// CRCMismatchError is returned when the CRC-32 computed over the
// decompressed stream disagrees with the value stored in the central
// directory.
type CRCMismatchError struct {
	Expected, Got uint32
}

func (e CRCMismatchError) Error() string {
	return fmt.Sprintf("CRC mismatch. expected: %d got: %d", e.Expected, e.Got)
}

// AdapterError wraps a failure surfaced by the backing store's Size or
// ReadAt operations. An EntryStream also wraps decompressor errors (from
// reading or closing the inflater) in it.
type AdapterError struct {
	Err error
}

func (e AdapterError) Error() string { return e.Err.Error() }

func (e AdapterError) Unwrap() error { return e.Err }
