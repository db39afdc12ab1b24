package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore implements FileStore on the local filesystem.
// Objects are stored under {baseDir}/{bucket}/{key}.
type LocalStore struct {
	baseDir string
	bucket  string
}

// NewLocalStore creates a new LocalStore rooted at baseDir.
func NewLocalStore(baseDir, bucket string) *LocalStore {
	return &LocalStore{baseDir: baseDir, bucket: bucket}
}

func (s *LocalStore) objectPath(key string) string {
	return filepath.Join(s.baseDir, s.bucket, filepath.FromSlash(key))
}

// Put writes data to the object path, replacing an existing object.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (Ref, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Ref{}, err
	}
	p := s.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return Ref{}, fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		return Ref{}, fmt.Errorf("failed to write object %q: %w", key, err)
	}
	return Ref{Bucket: s.bucket, Key: key, Size: int64(len(data))}, nil
}

// Get opens the object for reading.
func (s *LocalStore) Get(_ context.Context, ref Ref) (io.ReadCloser, error) {
	key, err := cleanKey(ref.Key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.objectPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object %q: %w", key, err)
	}
	return f, nil
}

// Delete removes the object. Removing a missing object is not an error.
func (s *LocalStore) Delete(_ context.Context, ref Ref) error {
	key, err := cleanKey(ref.Key)
	if err != nil {
		return err
	}
	if err := os.Remove(s.objectPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Link(prefix string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.baseDir, s.bucket, filepath.FromSlash(prefix)))
}
