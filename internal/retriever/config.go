package retriever

import (
	"fmt"
	"time"
)

// Config is the declarative form of a retriever, as it appears in a
// command line or configuration file.
type Config struct {
	Kind string `json:"kind" yaml:"kind"` // file, http, github

	// File.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// HTTP.
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// GitHub.
	RepositorySlug string `json:"repositorySlug,omitempty" yaml:"repositorySlug,omitempty"`
	Branch         string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Token          string `json:"token,omitempty" yaml:"token,omitempty"`

	// Timeout in milliseconds for remote retrievers.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// New builds the retriever described by cfg.
func New(cfg Config) (Retriever, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond

	switch cfg.Kind {
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file retriever: path is required")
		}
		return &File{Path: cfg.Path}, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http retriever: url is required")
		}
		return &HTTP{
			URL:     cfg.URL,
			Method:  cfg.Method,
			Body:    cfg.Body,
			Headers: cfg.Headers,
			Timeout: timeout,
		}, nil
	case "github":
		if cfg.RepositorySlug == "" {
			return nil, fmt.Errorf("github retriever: repositorySlug is required")
		}
		if cfg.Path == "" {
			return nil, fmt.Errorf("github retriever: path is required")
		}
		return &GitHub{
			RepositorySlug: cfg.RepositorySlug,
			Path:           cfg.Path,
			Branch:         cfg.Branch,
			Token:          cfg.Token,
			Timeout:        timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown retriever kind %q (want file, http, or github)", cfg.Kind)
	}
}

// Masked returns a copy of cfg safe to log or echo back to a client.
func (c Config) Masked() Config {
	masked := c
	if masked.Token != "" {
		masked.Token = "********"
	}
	if auth, ok := masked.Headers["Authorization"]; ok && auth != "" {
		headers := make(map[string]string, len(masked.Headers))
		for k, v := range masked.Headers {
			headers[k] = v
		}
		headers["Authorization"] = "********"
		masked.Headers = headers
	}
	return masked
}
