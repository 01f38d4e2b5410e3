package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// localStorage implements Storage on the local filesystem. Objects are
// addressed by a random UUID plus the original extension under a fixed root
// directory, created lazily on first use.
type localStorage struct {
	root string
}

// NewLocal creates a local disk backend rooted at dir.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	return &localStorage{root: dir}, nil
}

func (l *localStorage) ensureRoot() error {
	return os.MkdirAll(l.root, 0o755)
}

// Put writes the content to a new file. A partial write is removed before
// returning, so a returned key always references a complete object.
func (l *localStorage) Put(ctx context.Context, suggestedName string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := l.ensureRoot(); err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: create root: %w", ErrWrite, err)
	}

	key := uuid.New().String() + filepath.Ext(suggestedName)
	path := filepath.Join(l.root, key)

	f, err := os.Create(path)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return ObjectInfo{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the stored file for streaming.
func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %w", ErrRead, err)
	}

	path := filepath.Join(l.root, filepath.Base(key))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, ObjectInfo{}, fmt.Errorf("%w: %w", ErrRead, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("%w: %w", ErrRead, err)
	}

	info := ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime(),
	}
	return f, info, nil
}

// Delete removes the stored file. Deleting a missing key is a no-op.
func (l *localStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(l.root, filepath.Base(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PresignGet is unsupported on local disk; callers fall back to streaming Get.
func (l *localStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}
