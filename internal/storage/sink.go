package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Storage errors. Underlying driver errors are wrapped, so both the sentinel
// and the original error match with errors.Is.
var (
	ErrNotExist   = errors.New("storage: object does not exist")
	ErrPermission = errors.New("storage: permission denied")
)

// DefaultBufferSize is the writer buffer size used when none is configured.
const DefaultBufferSize = 32 * 1024

// Sink writes objects into a bucket.
type Sink struct {
	bucket     *blob.Bucket
	location   string
	bufferSize int
	owned      bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithBufferSize sets the writer buffer size.
func WithBufferSize(n int64) Option {
	return func(s *Sink) {
		if n > 0 {
			s.bufferSize = int(n)
		}
	}
}

// Open prepares the output location and returns a Sink writing into it.
// Local directories, given as a path or a file:// URL, are created with all
// parents; this is a no-op when the directory already exists.
func Open(ctx context.Context, location string, options ...Option) (*Sink, error) {
	var (
		bucket *blob.Bucket
		err    error
	)

	if path, ok := localPath(location); !ok {
		bucket, err = blob.OpenBucket(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", location, err)
		}
	} else {
		dir, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve output directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		bucket, err = fileblob.OpenBucket(dir, &fileblob.Options{
			CreateDir: true,
			NoTempDir: true,
			Metadata:  fileblob.MetadataDontWrite,
		})
		if err != nil {
			return nil, fmt.Errorf("open output directory: %w", err)
		}
	}

	s := New(bucket, location, options...)
	s.owned = true
	return s, nil
}

// New wraps an already open bucket. Close does not close bucket.
func New(bucket *blob.Bucket, location string, options ...Option) *Sink {
	s := &Sink{
		bucket:     bucket,
		location:   location,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// IsBucketURL reports whether location is a bucket URL rather than a path.
func IsBucketURL(location string) bool {
	return strings.Contains(location, "://")
}

// localPath returns the directory for a plain path or a file:// URL.
func localPath(location string) (string, bool) {
	if !IsBucketURL(location) {
		return location, true
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme != fileblob.Scheme || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// Location returns the output location as given to Open or New.
func (s *Sink) Location() string {
	return s.location
}

// Exists reports whether an object named key exists.
func (s *Sink) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, classify(err))
	}
	return ok, nil
}

// Write streams r into the object named key, replacing any existing object.
// It returns the number of bytes copied. On error the write is aborted and
// the error from r is returned unchanged so callers can inspect it.
func (s *Sink) Write(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	// Cancelling the writer's context before Close discards the object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: contentType,
		BufferSize:  s.bufferSize,
	})
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", key, classify(err))
	}

	n, copyErr := io.Copy(w, r)
	if copyErr != nil {
		cancel()
		w.Close()
		return n, copyErr
	}

	if err := w.Close(); err != nil {
		return n, fmt.Errorf("write %s: %w", key, classify(err))
	}
	return n, nil
}

// readAll returns the contents of the object named key.
func (s *Sink) readAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, classify(err))
	}
	return data, nil
}

// Close releases the bucket if it was opened by Open.
func (s *Sink) Close() error {
	if !s.owned {
		return nil
	}
	return s.bucket.Close()
}

// classify maps gocloud error codes to package errors.
func classify(err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return fmt.Errorf("%w: %w", ErrNotExist, err)
	case gcerrors.PermissionDenied:
		return fmt.Errorf("%w: %w", ErrPermission, err)
	default:
		return err
	}
}
