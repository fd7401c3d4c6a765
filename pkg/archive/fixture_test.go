package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
)

// buildZip constructs a zip archive in memory using the standard library's
// writer, for tests that only need conformant, well-formed fixtures. files
// is written in slice order, so the central directory lists the entries in
// the order the caller gives them.
func buildZip(files []fixtureFile) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		hdr := &zip.FileHeader{Name: f.name, Method: f.method}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write(f.data); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

type fixtureFile struct {
	name   string
	method uint16
	data   []byte
}

// findCentralDirectoryFileHeader locates the single occurrence of a CD file
// header whose name matches, returning its absolute byte offset in raw.
func findCentralDirectoryFileHeader(raw []byte, name string) int {
	sig := []byte{0x50, 0x4b, 0x01, 0x02}
	for i := 0; i+46 <= len(raw); i++ {
		if !bytes.Equal(raw[i:i+4], sig) {
			continue
		}
		nameLen := int(binary.LittleEndian.Uint16(raw[i+28 : i+30]))
		if i+46+nameLen > len(raw) {
			continue
		}
		if string(raw[i+46:i+46+nameLen]) == name {
			return i
		}
	}
	return -1
}

// patchUint16LE overwrites a little-endian 16-bit field at off.
func patchUint16LE(raw []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(raw[off:off+2], v)
}
