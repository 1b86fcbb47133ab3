// Package source fetches configuration and content pool documents from the
// local filesystem or over HTTP.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// ErrMalformed reports a document that was fetched but could not be decoded.
var ErrMalformed = errors.New("malformed document")

// ResourceLoadError reports a document that could not be fetched or decoded.
type ResourceLoadError struct {
	Location string
	Err      error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Location, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseDir resolves relative file locations against dir instead of the
// working directory.
func WithBaseDir(dir string) ClientOption {
	return func(c *Client) {
		c.baseDir = dir
	}
}

// Client reads documents by location.
type Client struct {
	httpClient HTTPClient
	baseDir    string
}

// NewClient creates a client that reads files and http(s) URLs.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the raw bytes at location. Failures are *ResourceLoadError.
func (c *Client) Fetch(ctx context.Context, location string) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if IsRemote(location) {
		body, err = c.get(ctx, location)
	} else {
		body, err = c.readFile(location)
	}
	if err != nil {
		return nil, &ResourceLoadError{Location: location, Err: err}
	}
	return body, nil
}

// FetchJSON fetches location and decodes it into v.
func (c *Client) FetchJSON(ctx context.Context, location string, v any) error {
	body, err := c.Fetch(ctx, location)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &ResourceLoadError{Location: location, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return nil
}

func (c *Client) readFile(location string) ([]byte, error) {
	p := strings.TrimPrefix(location, "file://")
	if !filepath.IsAbs(p) && c.baseDir != "" {
		p = filepath.Join(c.baseDir, p)
	}
	return os.ReadFile(p)
}

func (c *Client) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	switch {
	case e.Code == http.StatusNotFound:
		return "404 not found"
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return fmt.Sprintf("%d access denied", e.Code)
	case e.Code >= 500:
		return fmt.Sprintf("%d server error - please try again later", e.Code)
	default:
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
}

// IsRemote reports whether location is an http or https URL.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Resolve locates name relative to the document at base. Absolute paths and
// URLs are returned unchanged.
func Resolve(base, name string) string {
	if IsRemote(name) || filepath.IsAbs(name) {
		return name
	}
	if IsRemote(base) {
		b, err := url.Parse(base)
		if err != nil {
			return name
		}
		ref, err := url.Parse(name)
		if err != nil {
			return name
		}
		return b.ResolveReference(ref).String()
	}
	return filepath.Join(filepath.Dir(strings.TrimPrefix(base, "file://")), name)
}
