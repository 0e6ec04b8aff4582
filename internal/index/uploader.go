// Package index uploads release artifacts to a package index. Two backends
// exist: a legacy-upload HTTP endpoint receiving one multipart POST per file,
// and an S3-compatible object store. Neither retries: a rejected upload is
// fatal to the publish run and recovery is an operator re-trigger.
package index

import (
	"context"
	"fmt"
	"os"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/config"
)

// Uploader pushes a set of artifacts to the package index.
type Uploader interface {
	Upload(ctx context.Context, artifacts []artifact.Artifact) error
}

// New selects and configures an uploader backend from the index config.
// Credentials are read from the environment variables the config names.
func New(cfg config.IndexConfig) (Uploader, error) {
	switch cfg.Backend {
	case "", "http":
		return NewHTTPUploader(HTTPConfig{
			URL:      cfg.URL,
			Username: os.Getenv(cfg.UsernameEnv),
			Password: os.Getenv(cfg.PasswordEnv),
		})
	case "s3":
		return NewObjectStoreUploader(ObjectStoreConfig{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: os.Getenv(cfg.AccessKeyEnv),
			SecretKey: os.Getenv(cfg.SecretKeyEnv),
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("index: unknown backend %q", cfg.Backend)
	}
}
