// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner writes a line naming the plugin and fails for configured plugins.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	fail    map[string]int
	delay   time.Duration
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, stdout io.Writer) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), argv...))
	f.mu.Unlock()

	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	plugin := pluginFromArgv(argv)
	_, _ = fmt.Fprintf(stdout, "output of %s\n", plugin)
	if code, ok := f.fail[plugin]; ok {
		return &ExitError{Argv: argv, ExitCode: code, Stderr: "boom"}
	}
	return nil
}

func pluginFromArgv(argv []string) string {
	for i, a := range argv {
		if a == "-f" && i+2 < len(argv) {
			return argv[i+2]
		}
	}
	return ""
}

func newJobs(t *testing.T, plugins ...string) []PluginJob {
	t.Helper()
	dir := t.TempDir()
	base := BaseCommand("vol", dir, FormatText)

	var ps []Plugin
	for _, p := range plugins {
		ps = append(ps, Plugin{Name: p})
	}
	var jobs []PluginJob
	for _, inv := range PluginCommands(base, "/images/mem.raw", ps) {
		jobs = append(jobs, PluginJob{
			Invocation: inv,
			OutputPath: filepath.Join(dir, inv.Plugin.Name+".txt"),
		})
	}
	return jobs
}

func TestExecutor_RunsEachPluginOnce(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutor(runner, 0, zerolog.Nop())
	jobs := newJobs(t, "windows.info", "windows.pslist", "windows.pstree")

	results := exec.Run(context.Background(), jobs, nil)

	require.Len(t, results, 3)
	assert.Len(t, runner.calls, 3)
	for i, res := range results {
		assert.Equal(t, jobs[i].Plugin.Name, res.Plugin, "results keep job order")
		assert.True(t, res.Succeeded())

		data, err := os.ReadFile(res.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, "output of "+res.Plugin+"\n", string(data))
	}
}

func TestExecutor_FailureDoesNotStopOthers(t *testing.T) {
	runner := &fakeRunner{fail: map[string]int{"windows.pslist": 2}}
	exec := NewExecutor(runner, 0, zerolog.Nop())

	var (
		mu      sync.Mutex
		updates []Progress
	)
	results := exec.Run(context.Background(), newJobs(t, "windows.info", "windows.pslist", "windows.pstree"), func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, p)
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Succeeded())
	assert.False(t, results[1].Succeeded())
	assert.Equal(t, 2, results[1].ExitCode)
	assert.True(t, results[2].Succeeded())

	require.Len(t, updates, 4, "initial update plus one per plugin")
	assert.Equal(t, Progress{Total: 3}, updates[0])
	assert.Equal(t, Progress{Total: 3, Completed: 2, Failed: 1}, updates[3])
}

func TestExecutor_ParallelLimit(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	exec := NewExecutor(runner, 2, zerolog.Nop())

	results := exec.Run(context.Background(), newJobs(t, "a.one", "a.two", "a.three", "a.four", "a.five"), nil)

	require.Len(t, results, 5)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestExecutor_UnwritableOutput(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutor(runner, 0, zerolog.Nop())

	jobs := newJobs(t, "windows.info")
	jobs[0].OutputPath = filepath.Join(t.TempDir(), "missing", "out.txt")

	results := exec.Run(context.Background(), jobs, nil)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, -1, results[0].ExitCode)
	assert.Empty(t, runner.calls)
}
