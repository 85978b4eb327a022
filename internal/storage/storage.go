// Package storage provides blob storage for listing photos.
//
// Two providers implement Storage:
// - LocalStorage: files under a base directory, for development
// - R2Storage: Cloudflare R2 through the S3 API, for production
//
// Storage only moves bytes. Whether an upload is allowed is decided by the
// quota gate before Put is called.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage defines the blob operations the photo pipeline needs.
type Storage interface {
	// Put stores data at key. It fails with ErrKeyExists unless
	// opts.Overwrite is set, and with ErrTooLarge past opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns an address for the object. Public buckets ignore expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string
	MaxSize     int64 // 0 means no limit
	Overwrite   bool
	Public      bool
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom domain. When empty, URL returns
	// presigned links.
	PublicURL string

	// Region defaults to "auto".
	Region string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// ListingPhotoKey generates a storage key for a listing photo.
// Format: listings/{listingID}/photos/{uuid}{ext}
func ListingPhotoKey(listingID uuid.UUID, filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = extensionForContentType(contentType)
	}
	return fmt.Sprintf("listings/%s/photos/%s%s", listingID, uuid.New(), ext)
}

// validateKey rejects empty keys and path traversal attempts.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	return nil
}
