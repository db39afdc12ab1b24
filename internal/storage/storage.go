// Package storage holds the object stores that keep run results and test case
// attachments outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"testops/internal/config"
)

// ErrObjectNotFound is returned by Get for a missing object.
var ErrObjectNotFound = errors.New("object not found")

// Ref identifies a stored object.
type Ref struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

// FileStore stores bytes under a key in a single bucket.
type FileStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Ref, error)
	Get(ctx context.Context, ref Ref) (io.ReadCloser, error)
	Delete(ctx context.Context, ref Ref) error
	// Link returns an address for everything stored under prefix.
	Link(prefix string) string
}

// cleanKey rejects keys that would escape the bucket.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return key, nil
}

// Stores groups the buckets used by the service.
type Stores struct {
	Results     FileStore
	Attachments FileStore
	Reports     FileStore
}

// New builds the configured backend for every bucket.
func New(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	switch cfg.Type {
	case "local":
		return &Stores{
			Results:     NewLocalStore(cfg.LocalDir, cfg.ResultsBucket),
			Attachments: NewLocalStore(cfg.LocalDir, cfg.AttachmentsBucket),
			Reports:     NewLocalStore(cfg.LocalDir, cfg.ReportsBucket),
		}, nil
	case "s3", "minio":
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		results, err := NewS3Store(ctx, client, cfg.ResultsBucket, endpointURL(cfg))
		if err != nil {
			return nil, err
		}
		attachments, err := NewS3Store(ctx, client, cfg.AttachmentsBucket, endpointURL(cfg))
		if err != nil {
			return nil, err
		}
		reports, err := NewS3Store(ctx, client, cfg.ReportsBucket, endpointURL(cfg))
		if err != nil {
			return nil, err
		}
		return &Stores{Results: results, Attachments: attachments, Reports: reports}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func endpointURL(cfg config.StorageConfig) string {
	if cfg.Endpoint == "" {
		return ""
	}
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}
