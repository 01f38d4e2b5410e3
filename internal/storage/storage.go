package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"collabdocs/internal/config"
)

// Package storage contains the storage backend abstraction for uploaded
// documents. Exactly one backend is selected at process start (see New) and
// stays fixed for the process lifetime: an S3-compatible object store when
// the full remote credential set is configured, local disk otherwise.

// Sentinel errors. Callers branch with errors.Is; backend-specific causes
// are wrapped underneath.
var (
	// ErrWrite means Put failed. No usable key exists for the object.
	ErrWrite = errors.New("storage: write failed")
	// ErrRead means an existing object could not be retrieved.
	ErrRead = errors.New("storage: read failed")
	// ErrNotFound means the key does not reference a stored object.
	ErrNotFound = errors.New("storage: object not found")
	// ErrPresignUnsupported is returned by backends that cannot produce
	// signed download URLs; callers fall back to direct streaming.
	ErrPresignUnsupported = errors.New("storage: presigned URLs not supported")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the implementation will buffer as needed.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the backend abstraction over where uploaded bytes physically
// live. Put is atomic from the caller's point of view: it either returns a
// usable key or an ErrWrite-wrapped error, never a key for a partially
// written object. Delete on a non-existent key is a no-op.
type Storage interface {
	// Put stores the reader's content under a backend-chosen key derived
	// from suggestedName (only its extension is kept) and returns the key.
	Put(ctx context.Context, suggestedName string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL for downloading the object
	// without credentials, or ErrPresignUnsupported.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New selects the storage backend once at startup. The choice is immutable
// for the process lifetime; there is no hot swapping between backends.
func New(cfg *config.AppConfig) (Storage, error) {
	if cfg.MinIO.Complete() {
		return NewMinIO(cfg.MinIO)
	}
	return NewLocal(cfg.Storage.LocalRoot)
}
