package index

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kingrea/slipway/internal/artifact"
)

// ObjectStoreConfig configures the S3-compatible backend.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Validate reports configuration errors before any network call is made.
func (cfg ObjectStoreConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("index: object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("index: object store bucket is required")
	}
	return nil
}

// ObjectStoreUploader pushes artifacts into an S3-compatible bucket, keyed
// by file name under the producing job's prefix.
type ObjectStoreUploader struct {
	cfg    ObjectStoreConfig
	client *minio.Client
}

// NewObjectStoreUploader builds the S3 backend.
func NewObjectStoreUploader(cfg ObjectStoreConfig) (*ObjectStoreUploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("index: object store client: %w", err)
	}
	return &ObjectStoreUploader{cfg: cfg, client: client}, nil
}

// Upload ensures the bucket exists, then puts every artifact.
func (u *ObjectStoreUploader) Upload(ctx context.Context, artifacts []artifact.Artifact) error {
	if err := u.ensureBucket(ctx); err != nil {
		return err
	}
	for _, art := range artifacts {
		key := fmt.Sprintf("%s/%s", art.JobID, art.Name())
		_, err := u.client.FPutObject(ctx, u.cfg.Bucket, key, art.Path, minio.PutObjectOptions{
			ContentType: contentTypeFor(art.Kind),
		})
		if err != nil {
			return fmt.Errorf("index: put %s: %w", key, err)
		}
	}
	return nil
}

func (u *ObjectStoreUploader) ensureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("index: bucket exists %s: %w", u.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{Region: u.cfg.Region}); err != nil {
		return fmt.Errorf("index: make bucket %s: %w", u.cfg.Bucket, err)
	}
	return nil
}

func contentTypeFor(kind artifact.Kind) string {
	if kind == artifact.KindSourcePackage {
		return "application/gzip"
	}
	return "application/zip"
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
