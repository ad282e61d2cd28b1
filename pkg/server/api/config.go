package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vulntor/volworker/pkg/config"
)

var (
	ErrInvalidTimeout   = errors.New("handler timeout must not be negative")
	ErrInvalidBodyLimit = errors.New("max body size must be positive")
)

const defaultMaxBodyBytes = 1 << 20

// Config tunes the job API handlers.
type Config struct {
	// HandlerTimeout bounds a handler whose request carries no deadline.
	// Zero disables it.
	HandlerTimeout time.Duration
	MaxBodyBytes   int64
}

// DefaultConfig mirrors the server defaults.
func DefaultConfig() Config {
	return Config{HandlerTimeout: 30 * time.Second, MaxBodyBytes: defaultMaxBodyBytes}
}

// FromServerConfig derives the handler settings from the server section.
// An unset body limit falls back to 1 MiB.
func FromServerConfig(sc config.ServerConfig) (Config, error) {
	c := Config{HandlerTimeout: sc.HandlerTimeout, MaxBodyBytes: sc.MaxBodyBytes}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.HandlerTimeout < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, ErrInvalidBodyLimit)
	}
	return errors.Join(errs...)
}

// RequestContext applies HandlerTimeout unless r already has a deadline.
func (c Config) RequestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); ok || c.HandlerTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.HandlerTimeout)
}

// Body limits the request body to MaxBodyBytes.
func (c Config) Body(w http.ResponseWriter, r *http.Request) io.ReadCloser {
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	return http.MaxBytesReader(w, r.Body, limit)
}
