// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"
)

// RetryConfig controls how queue backend calls are retried.
type RetryConfig struct {
	// MaxAttempts counts the first call. 0 and 1 both mean a single attempt.
	MaxAttempts int
	InitialWait time.Duration
	// MaxWait caps a single wait. 0 leaves it uncapped.
	MaxWait    time.Duration
	Multiplier float64
	// Jitter spreads each wait by up to 25% in either direction.
	Jitter bool

	// OnRetry, if set, runs before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryConfig is used when connecting to Redis: five attempts over
// roughly eight seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2,
		Jitter:      true,
	}
}

// NoRetry makes a single attempt.
func NoRetry() RetryConfig { return RetryConfig{} }

// Validate reports every inconsistent field at once.
func (rc RetryConfig) Validate() error {
	if rc.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative, got %d", rc.MaxAttempts)
	}
	if rc.MaxAttempts <= 1 {
		return nil
	}
	var errs []error
	if rc.InitialWait < 0 || rc.MaxWait < 0 {
		errs = append(errs, errors.New("waits must not be negative"))
	}
	if rc.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("multiplier must be at least 1, got %g", rc.Multiplier))
	}
	if rc.MaxWait > 0 && rc.InitialWait > rc.MaxWait {
		errs = append(errs, fmt.Errorf("initial wait %v exceeds max wait %v", rc.InitialWait, rc.MaxWait))
	}
	return errors.Join(errs...)
}

// backoff returns the wait before retry n (n >= 1).
func (rc RetryConfig) backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	wait := float64(rc.InitialWait)
	for i := 1; i < n; i++ {
		wait *= rc.Multiplier
		if rc.MaxWait > 0 && wait >= float64(rc.MaxWait) {
			break
		}
	}
	if rc.MaxWait > 0 {
		wait = min(wait, float64(rc.MaxWait))
	}
	if rc.Jitter {
		wait *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(wait)
}

// RetryFunc is one attempt of a retried operation.
type RetryFunc func(ctx context.Context) error

// transient reports whether err is worth another attempt: dropped or refused
// connections, network timeouts and a Redis server still loading its
// dataset. Context errors never are.
func transient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case strings.HasPrefix(err.Error(), "LOADING "):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// WithRetry calls fn until it succeeds, fails permanently, ctx ends or the
// attempts run out.
func WithRetry(ctx context.Context, rc RetryConfig, fn RetryFunc) error {
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}
	attempts := max(rc.MaxAttempts, 1)

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		switch {
		case err == nil:
			return nil
		case !transient(err):
			return err
		case n == attempts:
			return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		wait := rc.backoff(n)
		if rc.OnRetry != nil {
			rc.OnRetry(n, wait, err)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
