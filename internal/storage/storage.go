// Package storage stores landing page assets and analytics archives.
//
// Two providers implement Storage:
//   - LocalStorage keeps objects under a directory on disk (development)
//   - R2Storage keeps objects in a Cloudflare R2 bucket (production)
//
// Keys are slash separated. The image handler reads originals from
// images/src and writes resized copies under images/cache, and the
// analytics archive sink appends NDJSON batches under analytics/.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
)

// Storage is the object store used by the image handler and the
// analytics archive.
type Storage interface {
	// Put stores data at key. ErrKeyExists is returned when the key is
	// taken and opts.Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller closes the reader.
	// ErrNotFound is returned for a missing key.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a public URL, or a presigned one valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is detected from the key extension when empty.
	ContentType string

	// MaxSize rejects bodies larger than this many bytes. Zero means no limit.
	MaxSize int64

	Overwrite bool

	// Public sets a public-read ACL on R2. Ignored by local storage.
	Public bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig configures LocalStorage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./data".
	BasePath string

	// BaseURL prefixes keys in URL, e.g. "http://localhost:8080/files".
	BaseURL string
}

// R2Config configures R2Storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom domain. Presigned URLs are used
	// when it is empty.
	PublicURL string

	// Region defaults to "auto".
	Region string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

const (
	imageSourcePrefix = "images/src"
	imageCachePrefix  = "images/cache"
	analyticsPrefix   = "analytics"
)

// ImageSourceKey is the key of an original landing page image.
//
//	images/src/hero.jpg
func ImageSourceKey(name string) string {
	return path.Join(imageSourcePrefix, name)
}

// ImageCacheKey is the key of name resized to width pixels.
//
//	images/cache/w640/hero.jpg
func ImageCacheKey(name string, width int) string {
	return path.Join(imageCachePrefix, fmt.Sprintf("w%d", width), name)
}

// ArchiveKey is the key of one analytics batch flushed at t. The date is
// taken in UTC so batches from one day share a prefix.
//
//	analytics/2026/10/17/7f0c....ndjson
func ArchiveKey(t time.Time, id uuid.UUID) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.ndjson", analyticsPrefix, t.Year(), int(t.Month()), t.Day(), id)
}

// New builds the Storage named by provider.
func New(provider string, local LocalConfig, r2 R2Config, logger *slog.Logger) (Storage, error) {
	switch provider {
	case ProviderLocal, "":
		return NewLocalStorage(local, logger)
	case ProviderR2:
		return NewR2Storage(r2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}
