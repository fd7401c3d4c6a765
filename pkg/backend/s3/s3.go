// Package s3 adapts an S3 object into a backend.Store, issuing byte-range
// GetObject requests for positional reads instead of downloading the whole
// object. Adapted from zipspy's original AWS client wrapper, generalized
// from a one-off extraction helper into the backing-store capability the
// archive reader consumes.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	log "github.com/sirupsen/logrus"

	"github.com/alec-rabold/zipspy/pkg/backend"
)

// Store implements backend.Store over an object in S3, fetching byte ranges
// on demand via GetObject rather than downloading the entire object.
type Store struct {
	api    s3iface.S3API
	bucket string
	key    string
}

// New creates a Store for the given bucket/key, using a session configured
// from the environment (shared config/credentials files, env vars, or an
// attached IAM role).
func New(bucket, key string) (*Store, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: creating session: %w", err)
	}
	return NewWithAPI(s3.New(sess), bucket, key), nil
}

// NewWithAPI creates a Store using an already-configured S3 API client,
// primarily so tests can substitute a fake implementation of s3iface.S3API.
func NewWithAPI(api s3iface.S3API, bucket, key string) *Store {
	return &Store{api: api, bucket: bucket, key: key}
}

// Size implements backend.Store by issuing a HEAD request for the object's
// content length.
func (s *Store) Size(ctx context.Context) (int64, error) {
	out, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		log.Errorf("s3: head object failed (bucket: %s)(key: %s), err: %v", s.bucket, s.key, err)
		return 0, fmt.Errorf("s3: head object: %w", err)
	}
	if out.ContentLength == nil {
		return 0, fmt.Errorf("s3: head object response missing content length")
	}
	return *out.ContentLength, nil
}

// ReadAt implements backend.Store via a ranged GetObject request.
func (s *Store) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	byteRange := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(byteRange),
	})
	if err != nil {
		log.Errorf("s3: get object failed (bucket: %s)(key: %s)(range: %s), err: %v", s.bucket, s.key, byteRange, err)
		return 0, fmt.Errorf("s3: get object range %s: %w", byteRange, err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p)
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, fmt.Errorf("s3: reading object body: %w", err)
	}
	if cerr := backend.CheckFullRead("s3", len(p), n); cerr != nil {
		return n, cerr
	}
	return n, nil
}
