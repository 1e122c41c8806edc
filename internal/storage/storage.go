package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned for keys that do not exist in the backend.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey rejects absolute keys and keys escaping the storage root.
var ErrInvalidKey = errors.New("invalid object key")

type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Storage is the file store behind originals and everything derived from them.
// Keys are slash separated and relative, e.g. videos/{uuid}/renditions/720p.mp4.
type Storage interface {
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// OpenRange returns length bytes starting at offset. The caller closes the reader.
	OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	// Download copies an object into a local file for the media tools.
	Download(ctx context.Context, key, dst string) error
	Upload(ctx context.Context, src, key string) error
}

// Presigner is implemented by backends clients can upload to directly.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error)
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".m4s":  "video/iso.segment",
	".mpd":  "application/dash+xml",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ContentType maps a key to the MIME type served for it.
func ContentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// CleanKey normalises a key and refuses anything that would leave the root.
func CleanKey(key string) (string, error) {
	key = filepath.ToSlash(strings.TrimSpace(key))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
