// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecRunner_CapturesStdout(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner(5 * time.Second)

	var out bytes.Buffer
	err := r.Run(context.Background(), []string{"sh", "-c", "echo PID PPID; echo 4 0"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "PID PPID\n4 0\n", out.String())
}

func TestExecRunner_ExitError(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner(5 * time.Second)

	err := r.Run(context.Background(), []string{"sh", "-c", "echo 'Unsatisfied requirement' >&2; exit 3"}, &bytes.Buffer{})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, 3, ExitCode(err))
	assert.Contains(t, exitErr.Stderr, "Unsatisfied requirement")
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestExecRunner_Timeout(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner(50 * time.Millisecond)

	err := r.Run(context.Background(), []string{"sh", "-c", "exec sleep 5"}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, -1, ExitCode(err))
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	err := NewExecRunner(0).Run(context.Background(), nil, &bytes.Buffer{})
	require.Error(t, err)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	err := NewExecRunner(0).Run(context.Background(), []string{"volworker-test-no-such-binary"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, -1, ExitCode(err))
}

func TestTailBuffer_KeepsLastBytes(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	_, _ = tb.Write([]byte("0123456789"))
	_, _ = tb.Write([]byte("ab"))
	assert.Equal(t, "456789ab", tb.String())
}

func TestExitError_MessageUsesLastStderrLine(t *testing.T) {
	err := &ExitError{
		Argv:     []string{"vol", "-f", "mem.raw", "windows.info"},
		ExitCode: 1,
		Stderr:   "Progress: 100.00\nUnable to validate the plugin requirements\n",
	}
	msg := err.Error()
	assert.True(t, strings.HasSuffix(msg, "Unable to validate the plugin requirements"))
}
