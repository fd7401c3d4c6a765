package zipio

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// NewInflater returns a streaming raw-DEFLATE decompressor (no zlib
// wrapper) over r, using klauspost/compress's flate implementation. The
// returned ReadCloser must be closed to return its internal buffers to the
// package's reader pool.
func NewInflater(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}
