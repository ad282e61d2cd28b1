// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PluginJob is one plugin run whose stdout is captured into OutputPath.
type PluginJob struct {
	Invocation
	OutputPath string
}

// PluginResult is the outcome of a PluginJob.
type PluginResult struct {
	Plugin     string
	OutputPath string
	ExitCode   int
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the plugin exited cleanly.
func (r PluginResult) Succeeded() bool {
	return r.Err == nil
}

// Progress counts plugin completions for one image.
type Progress struct {
	Total     int `json:"total_plugins"`
	Completed int `json:"plugins_completed"`
	Failed    int `json:"plugins_failed"`
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Executor runs the plugins of one image independently of each other.
type Executor struct {
	Runner Runner
	// Parallel bounds how many plugins run at once; zero runs all of them together.
	Parallel int
	Logger   zerolog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(runner Runner, parallel int, logger zerolog.Logger) *Executor {
	return &Executor{
		Runner:   runner,
		Parallel: parallel,
		Logger:   logger.With().Str("component", "volatility.executor").Logger(),
	}
}

// Run starts every job, waits for all of them and returns results in job order.
// A failing plugin never stops the others.
func (e *Executor) Run(ctx context.Context, jobs []PluginJob, progress ProgressFunc) []PluginResult {
	results := make([]PluginResult, len(jobs))

	var (
		mu    sync.Mutex
		state = Progress{Total: len(jobs)}
	)
	report := func(r PluginResult) {
		mu.Lock()
		defer mu.Unlock()
		if r.Succeeded() {
			state.Completed++
		} else {
			state.Failed++
		}
		if progress != nil {
			progress(state)
		}
	}

	if progress != nil {
		progress(state)
	}

	var g errgroup.Group
	if e.Parallel > 0 {
		g.SetLimit(e.Parallel)
	}

	for i, job := range jobs {
		g.Go(func() error {
			res := e.runOne(ctx, job)
			results[i] = res
			report(res)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Executor) runOne(ctx context.Context, job PluginJob) PluginResult {
	start := time.Now()
	res := PluginResult{Plugin: job.Plugin.Name, OutputPath: job.OutputPath}

	logger := e.Logger.With().Str("plugin", job.Plugin.Name).Logger()
	logger.Info().Strs("argv", job.Args).Msg("Running plugin")

	err := e.writeTo(ctx, job)
	res.Duration = time.Since(start)
	res.Err = err
	res.ExitCode = ExitCode(err)

	if err != nil {
		logger.Warn().
			Err(err).
			Int("exit_code", res.ExitCode).
			Dur("duration", res.Duration).
			Msg("Plugin failed")
	} else {
		logger.Info().Dur("duration", res.Duration).Msg("Plugin completed")
	}
	return res
}

func (e *Executor) writeTo(ctx context.Context, job PluginJob) (err error) {
	f, err := os.OpenFile(job.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open plugin output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close plugin output: %w", cerr)
		}
	}()

	return e.Runner.Run(ctx, job.Args, f)
}
