// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Runner executes a vol command line, streaming its stdout into the writer.
type Runner interface {
	Run(ctx context.Context, argv []string, stdout io.Writer) error
}

// ExitError reports a plugin that exited with a non-zero status.
type ExitError struct {
	Argv     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", strings.Join(e.Argv, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}

// ExitCode extracts the process exit code from err: 0 for nil, the exit
// status for *ExitError, -1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return -1
}

const (
	defaultStderrLimit = 8 * 1024
	// waitDelay bounds how long Run waits for output pipes after the process is killed.
	waitDelay = 5 * time.Second
)

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Timeout bounds a single invocation. Zero disables the limit.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env []string
	// StderrLimit caps the captured stderr tail in bytes.
	StderrLimit int
}

// NewExecRunner returns an ExecRunner with the given per-invocation timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout, StderrLimit: defaultStderrLimit}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, argv []string, stdout io.Writer) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}

	execCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	limit := r.StderrLimit
	if limit <= 0 {
		limit = defaultStderrLimit
	}
	stderr := &tailBuffer{limit: limit}

	//nolint:gosec // G204: argv is assembled from the plugin catalog, not from shell input
	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v: %s", ErrTimeout, r.Timeout, strings.Join(argv, " "))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Argv:     append([]string(nil), argv...),
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		}
	}
	return fmt.Errorf("run %s: %w", argv[0], err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
