package objectstore

import (
	"context"
	"fmt"

	"docket/internal/objectstore/urlsigner"
	"docket/internal/platform/config"
)

// FromConfig builds the object store selected by configuration.
//
// The urlSigner is only used by the memory and file backends; S3 presigns
// natively. baseURL is the public root the delivery edge serves grants under.
func FromConfig(ctx context.Context, cfg config.ObjectStoreConfig, urlSigner *urlsigner.Signer, baseURL string) (Store, error) {
	switch cfg.Backend {
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("object store backend s3 requires a bucket")
		}
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	case "file":
		if cfg.FileDir == "" {
			return nil, fmt.Errorf("object store backend file requires a directory")
		}
		return NewFile(cfg.FileDir, WithFileURLSigner(urlSigner, baseURL))
	case "memory", "":
		return NewMemory(WithURLSigner(urlSigner, baseURL)), nil
	default:
		return nil, fmt.Errorf("unknown object store backend: %q", cfg.Backend)
	}
}
