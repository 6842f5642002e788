package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/memvfs"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// HTTPClient is the subset of *http.Client used by [HTTPProvider]
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource contains http-specific source request fields
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  *HTTPMethod       `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`
}

// HTTPProvider builds [HTTPAdapter] sources sharing one client
type HTTPProvider struct {
	client HTTPClient
}

// RegisterHTTP registers an [HTTPProvider] using http.DefaultClient
func RegisterHTTP(r *Registry) {
	r.Register(HTTPSourceType, &HTTPProvider{client: http.DefaultClient})
}

func NewHTTPProvider(client HTTPClient) *HTTPProvider {
	return &HTTPProvider{client: client}
}

func (p *HTTPProvider) NewSource(raw []byte) (memvfs.ContentSource, error) {
	var cfg HTTPSource
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	if err := validateURL(cfg.URL); err != nil {
		return nil, err
	}
	return &HTTPAdapter{config: &cfg, client: p.client}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("http source requires a url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	if u.User != nil {
		return fmt.Errorf("invalid url %q: user info is not allowed", raw)
	}
	return nil
}

// HTTPAdapter implements [memvfs.ContentSource] by fetching a URL once
type HTTPAdapter struct {
	config *HTTPSource
	client HTTPClient
}

func (h *HTTPAdapter) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, h.getMethod(), h.config.URL, nil)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range h.config.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func (h *HTTPAdapter) Content(ctx context.Context) ([]byte, error) {
	req, err := h.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: unexpected status %s", req.Method, h.config.URL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (h *HTTPAdapter) getMethod() HTTPMethod {
	if h.config.Method != nil {
		return *h.config.Method
	}
	return HTTPMethodGet
}
