package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Host creates release records on a hosting service.
type Host interface {
	CreateRelease(ctx context.Context, record Record) (CreatedRelease, error)
}

// CreatedRelease identifies a release the host accepted.
type CreatedRelease struct {
	ID  int64  `json:"id"`
	URL string `json:"html_url,omitempty"`
}

// HostConfig configures the HTTP release host client.
type HostConfig struct {
	// APIBase is the service API root, e.g. https://api.github.com.
	APIBase string
	// Owner and Repo address the repository the release belongs to.
	Owner string
	Repo  string
	// Token authenticates the create call.
	Token string
}

// Validate reports configuration errors before any network call is made.
func (cfg HostConfig) Validate() error {
	if cfg.APIBase == "" {
		return fmt.Errorf("release: host api base is required")
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return fmt.Errorf("release: host owner and repo are required")
	}
	return nil
}

// HTTPHost implements Host against a GitHub-style releases endpoint.
type HTTPHost struct {
	cfg    HostConfig
	client *http.Client
}

// HostOption customizes an HTTPHost.
type HostOption func(*HTTPHost)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) HostOption {
	return func(h *HTTPHost) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTPHost builds a release host client.
func NewHTTPHost(cfg HostConfig, opts ...HostOption) (*HTTPHost, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	host := &HTTPHost{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(host)
	}
	return host, nil
}

// CreateRelease submits the record. Rejections are fatal to the publish run;
// the caller does not retry.
func (h *HTTPHost) CreateRelease(ctx context.Context, record Record) (CreatedRelease, error) {
	if err := record.Validate(); err != nil {
		return CreatedRelease{}, err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return CreatedRelease{}, fmt.Errorf("release: encode record: %w", err)
	}
	url := fmt.Sprintf("%s/repos/%s/%s/releases", strings.TrimRight(h.cfg.APIBase, "/"), h.cfg.Owner, h.cfg.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return CreatedRelease{}, fmt.Errorf("release: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.Token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return CreatedRelease{}, fmt.Errorf("release: create %s: %w", record.Tag, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusCreated {
		return CreatedRelease{}, fmt.Errorf("release: host rejected %s: %s: %s", record.Tag, resp.Status, strings.TrimSpace(string(body)))
	}
	var created CreatedRelease
	if err := json.Unmarshal(body, &created); err != nil {
		return CreatedRelease{}, fmt.Errorf("release: decode response: %w", err)
	}
	return created, nil
}
