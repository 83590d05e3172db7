// Package inventory is the HTTP client for the pharmacy inventory backend.
// The backend serves medications, suppliers and users as JSON arrays and
// accepts generated documents through a multipart upload endpoint.
package inventory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	pathMedications = "/medicamentos/all"
	pathSuppliers   = "/proveedores/all"
	pathUsers       = "/users/all"
	pathUpload      = "/documentos/upload"

	headerServiceToken = "X-Service-Token"
)

// Record is one backend entity decoded from JSON. Keys follow the backend's
// Spanish field names (nombre, existencias, categoria, ...).
type Record map[string]any

// Config holds the backend client configuration.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:3000/api.
	BaseURL string
	// ServiceToken is the static credential sent to the backend.
	ServiceToken string
	// UploadEnabled turns on document uploads after each report.
	UploadEnabled bool
	// UploadTimeout bounds each upload call.
	UploadTimeout time.Duration
	// Timeout bounds collection fetches; zero means no limit.
	Timeout time.Duration
	// OAuth, when set, obtains a credential with the client credentials grant
	// if no ServiceToken is configured.
	OAuth *OAuthConfig
}

// OAuthConfig configures the optional client credentials grant.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://localhost:3000/api",
		UploadTimeout: 30 * time.Second,
	}
}

// Client talks to the inventory backend.
type Client struct {
	config      *Config
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	now         func() time.Time
}

// NewClient creates a new backend client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = 30 * time.Second
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		now:        time.Now,
	}

	if o := config.OAuth; o != nil && o.TokenURL != "" && o.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			TokenURL:     o.TokenURL,
		}
		c.tokenSource = cc.TokenSource(context.Background())
	}

	return c
}

// UploadEnabled reports whether generated documents should be uploaded.
func (c *Client) UploadEnabled() bool {
	return c.config.UploadEnabled
}

// ListMedications fetches the full medication collection.
func (c *Client) ListMedications(ctx context.Context) ([]Record, error) {
	return c.listAll(ctx, pathMedications)
}

// ListSuppliers fetches the full supplier collection.
func (c *Client) ListSuppliers(ctx context.Context) ([]Record, error) {
	return c.listAll(ctx, pathSuppliers)
}

// ListUsers fetches the full user collection.
func (c *Client) ListUsers(ctx context.Context) ([]Record, error) {
	return c.listAll(ctx, pathUsers)
}

func (c *Client) listAll(ctx context.Context, path string) ([]Record, error) {
	url := c.endpoint(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.config.ServiceToken != "" {
		req.Header.Set(headerServiceToken, c.config.ServiceToken)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("GET %s returned status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", url)
	}

	slog.Debug("backend collection fetched",
		"path", path,
		"count", len(records),
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return records, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}
