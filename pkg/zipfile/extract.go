// Package zipfile is the thin extraction layer the CLI embeds: it opens an
// archive over any backend.Store and pulls out the files whose names match
// a set of search terms, decompressing each into memory.
package zipfile

import (
	"bytes"
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alec-rabold/zipspy/pkg/archive"
	"github.com/alec-rabold/zipspy/pkg/backend"
)

// File is a decompressed, extracted entry.
type File struct {
	Name     string
	Modified *time.Time
	Contents bytes.Buffer
}

// ExtractResult groups extracted files by the search term that matched
// them, since a single term (e.g. a directory prefix) may match many
// entries.
type ExtractResult struct {
	FileMap map[string][]*File
}

// FileExtractor extracts & decompresses files from a zip archive over any
// backend.Store (S3, local file, SFTP, in-memory).
type FileExtractor struct {
	archive *archive.Archive
}

// NewFileExtractor opens the archive's central directory eagerly (§4.6
// open) over the given backing store.
func NewFileExtractor(ctx context.Context, store backend.Store) (*FileExtractor, error) {
	a, err := archive.Open(ctx, store)
	if err != nil {
		return nil, err
	}
	return &FileExtractor{archive: a}, nil
}

// List returns the public view of every entry in central-directory order.
func (x *FileExtractor) List() []archive.Entry {
	return x.archive.List()
}

// ExtractFiles decompresses every entry whose name contains one of the
// given search terms, grouping the results by the term that matched.
// opts is forwarded to each entry's Stream call (e.g. a chunk_size
// override); when several carry a positive ChunkSize, the last one wins.
func (x *FileExtractor) ExtractFiles(ctx context.Context, searchTerms []string, opts ...archive.StreamOptions) (*ExtractResult, error) {
	result := &ExtractResult{FileMap: make(map[string][]*File)}

	for _, entry := range x.archive.List() {
		term, ok := matchingTerm(searchTerms, entry.Name)
		if !ok {
			continue
		}

		stream, err := x.archive.Stream(ctx, entry.Name, opts...)
		if err != nil {
			return nil, err
		}

		f := &File{Name: entry.Name, Modified: entry.Modified}
		if _, err := f.Contents.ReadFrom(stream); err != nil {
			stream.Close()
			return nil, err
		}
		if err := stream.Close(); err != nil {
			log.WithError(err).WithField("entry", entry.Name).Warn("error closing entry stream")
		}

		result.FileMap[term] = append(result.FileMap[term], f)
	}

	return result, nil
}

func matchingTerm(terms []string, name string) (string, bool) {
	for _, term := range terms {
		if strings.Contains(name, term) {
			return term, true
		}
	}
	return "", false
}
