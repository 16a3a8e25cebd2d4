// Package retriever fetches flag configuration bytes from a backing
// location. Retrievers only move bytes; parsing and validation live in
// flagconf.
package retriever

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultTimeout bounds a single fetch when the caller does not set one.
const DefaultTimeout = 10 * time.Second

// A Retriever fetches the raw flag configuration document.
type Retriever interface {
	// Retrieve returns the configuration bytes. Implementations honor
	// context cancellation.
	Retrieve(ctx context.Context) ([]byte, error)

	// Location describes where the bytes come from, for logs. Secrets
	// never appear in the location string.
	Location() string
}

// File reads flag configuration from the local filesystem.
type File struct {
	Path string
}

func (f *File) Retrieve(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read flag file: %w", err)
	}
	return data, nil
}

func (f *File) Location() string { return f.Path }

// HTTP fetches flag configuration from an HTTP(S) endpoint.
type HTTP struct {
	URL     string
	Method  string            // defaults to GET
	Body    string            // optional request body
	Headers map[string]string // optional request headers
	Timeout time.Duration     // defaults to DefaultTimeout

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

func (h *HTTP) Retrieve(ctx context.Context) ([]byte, error) {
	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if h.Body != "" {
		body = strings.NewReader(h.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", h.URL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (h *HTTP) Location() string { return h.URL }

// GitHub fetches flag configuration from a file in a GitHub repository
// through the raw content endpoint.
type GitHub struct {
	RepositorySlug string // owner/repo
	Path           string // path to the flag file inside the repo
	Branch         string // defaults to main
	Token          string // optional, for private repositories
	Timeout        time.Duration

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client

	// BaseURL overrides the raw content host, for tests.
	BaseURL string
}

func (g *GitHub) Retrieve(ctx context.Context) ([]byte, error) {
	base := g.BaseURL
	if base == "" {
		base = "https://raw.githubusercontent.com"
	}
	branch := g.Branch
	if branch == "" {
		branch = "main"
	}

	h := &HTTP{
		URL:     fmt.Sprintf("%s/%s/%s/%s", base, g.RepositorySlug, branch, g.Path),
		Timeout: g.Timeout,
		Client:  g.Client,
	}
	if g.Token != "" {
		h.Headers = map[string]string{"Authorization": "Bearer " + g.Token}
	}
	return h.Retrieve(ctx)
}

func (g *GitHub) Location() string {
	branch := g.Branch
	if branch == "" {
		branch = "main"
	}
	return fmt.Sprintf("github.com/%s@%s:%s", g.RepositorySlug, branch, g.Path)
}
