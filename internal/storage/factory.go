package storage

import (
	"fmt"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewFromConfig picks the backend named by cfg.Storage.Driver. client may be nil for local.
func NewFromConfig(cfg *config.Config, client *s3.Client) (Storage, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		return NewLocalStorage(cfg.Storage.Root)
	case "s3":
		if client == nil {
			return nil, fmt.Errorf("storage: s3 driver selected without a client")
		}
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 bucket is not configured")
		}
		return NewS3Storage(client, cfg.S3.Bucket), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Storage.Driver)
	}
}
