package index

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kingrea/slipway/internal/artifact"
)

// HTTPConfig configures the legacy-upload HTTP backend.
type HTTPConfig struct {
	// URL is the upload endpoint.
	URL string
	// Username and Password authenticate via HTTP basic auth.
	Username string
	Password string
}

// HTTPUploader posts one multipart form per artifact to a legacy-style
// package index upload endpoint.
type HTTPUploader struct {
	cfg    HTTPConfig
	client *http.Client
}

// HTTPOption customizes an HTTPUploader.
type HTTPOption func(*HTTPUploader)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(u *HTTPUploader) {
		if client != nil {
			u.client = client
		}
	}
}

// NewHTTPUploader builds the HTTP backend.
func NewHTTPUploader(cfg HTTPConfig, opts ...HTTPOption) (*HTTPUploader, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("index: upload url is required")
	}
	uploader := &HTTPUploader{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(uploader)
	}
	return uploader, nil
}

// Upload pushes each artifact in order; the first rejection aborts the rest.
func (u *HTTPUploader) Upload(ctx context.Context, artifacts []artifact.Artifact) error {
	for _, art := range artifacts {
		if err := u.uploadOne(ctx, art); err != nil {
			return err
		}
	}
	return nil
}

func (u *HTTPUploader) uploadOne(ctx context.Context, art artifact.Artifact) error {
	file, err := os.Open(art.Path)
	if err != nil {
		return fmt.Errorf("index: open %s: %w", art.Path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField(":action", "file_upload"); err != nil {
		return fmt.Errorf("index: encode form: %w", err)
	}
	if err := writer.WriteField("filetype", formFiletype(art.Kind)); err != nil {
		return fmt.Errorf("index: encode form: %w", err)
	}
	if art.Checksum != "" {
		if err := writer.WriteField("sha256_digest", art.Checksum); err != nil {
			return fmt.Errorf("index: encode form: %w", err)
		}
	}
	part, err := writer.CreateFormFile("content", art.Name())
	if err != nil {
		return fmt.Errorf("index: encode form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("index: read %s: %w", art.Path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("index: finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.URL, &body)
	if err != nil {
		return fmt.Errorf("index: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.cfg.Username != "" || u.cfg.Password != "" {
		req.SetBasicAuth(u.cfg.Username, u.cfg.Password)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("index: upload %s: %w", art.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("index: upload %s rejected: %s: %s", art.Name(), resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}

func formFiletype(kind artifact.Kind) string {
	if kind == artifact.KindSourcePackage {
		return "sdist"
	}
	return "bdist_wheel"
}
