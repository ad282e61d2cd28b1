// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package task runs the Volatility plugin set of an OS group against memory
// images and packages every produced file into a Result.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/outputfile"
	"github.com/vulntor/volworker/pkg/report"
	"github.com/vulntor/volworker/pkg/volatility"
)

const (
	lockFileName     = ".volworker.lock"
	lockRetryDelay   = 100 * time.Millisecond
	yaraFileName     = "yara_rules.yar"
	reportTitle      = "Volatility3 Plugin Execution"
	maxReportSection = 1 << 20
)

// Request is the input of one task run.
type Request struct {
	InputFiles []outputfile.File `json:"input_files,omitempty"`
	PipeResult string            `json:"pipe_result,omitempty"`
	OutputPath string            `json:"output_path" validate:"required"`
	WorkflowID string            `json:"workflow_id,omitempty"`
	TaskConfig map[string]any    `json:"task_config,omitempty"`
}

// Progress reports plugin completion for the image being processed.
type Progress struct {
	Image string `json:"image"`
	volatility.Progress
}

// ProgressFunc receives progress updates.
type ProgressFunc func(Progress)

// Settings controls how plugins are invoked.
type Settings struct {
	Binary       string
	Parallel     int
	ArtifactGlob string
	LockTimeout  time.Duration
	Defaults     Options
}

// Task runs the plugin set of an OS group against memory images.
type Task struct {
	catalog  volatility.Catalog
	runner   volatility.Runner
	settings Settings
	logger   zerolog.Logger
}

// New creates a Task.
func New(catalog volatility.Catalog, runner volatility.Runner, settings Settings, logger zerolog.Logger) *Task {
	if settings.Binary == "" {
		settings.Binary = "vol"
	}
	if settings.ArtifactGlob == "" {
		settings.ArtifactGlob = "*.dmp"
	}
	return &Task{
		catalog:  catalog,
		runner:   runner,
		settings: settings,
		logger:   logger.With().Str("component", "task").Logger(),
	}
}

// NewFromConfig builds a Task that invokes the configured vol binary.
func NewFromConfig(cfg config.Config, logger zerolog.Logger) (*Task, error) {
	catalog := volatility.DefaultCatalog()
	if cfg.Volatility.CatalogFile != "" {
		loaded, err := volatility.LoadCatalog(cfg.Volatility.CatalogFile)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}

	settings := Settings{
		Binary:       cfg.Volatility.Binary,
		Parallel:     cfg.Volatility.Parallel,
		ArtifactGlob: cfg.Volatility.ArtifactGlob,
		LockTimeout:  cfg.Worker.LockTimeout,
		Defaults: Options{
			OSGroup:      volatility.OSGroup(cfg.Task.OSGroup),
			OutputFormat: cfg.Task.OutputFormat,
		},
	}
	return New(catalog, volatility.NewExecRunner(cfg.Volatility.Timeout), settings, logger), nil
}

// Catalog returns the plugin catalog the task selects from.
func (t *Task) Catalog() volatility.Catalog {
	return t.catalog
}

// Defaults returns the options applied when a request leaves them out.
func (t *Task) Defaults() Options {
	return t.settings.Defaults
}

// Run executes the task. progress may be nil.
func (t *Task) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	inputs, err := InputFiles(req.PipeResult, req.InputFiles)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, WithErrorCode(ErrNoInputFiles, CodeNoInput)
	}

	opts, err := ParseOptions(req.TaskConfig, t.settings.Defaults, t.catalog)
	if err != nil {
		return nil, err
	}

	outputDir, err := checkOutputDir(req.OutputPath)
	if err != nil {
		return nil, err
	}

	unlock, err := t.lockOutput(ctx, outputDir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := t.logger.With().
		Str("workflow_id", req.WorkflowID).
		Str("os_group", string(opts.OSGroup)).
		Str("output_format", opts.OutputFormat).
		Logger()

	run := &runState{
		owned: make(map[string]struct{}),
	}
	// Files already matching the artifact glob belong to earlier runs
	// sharing this directory.
	if err := t.markPreexisting(run, outputDir); err != nil {
		return nil, WithErrorCode(err, CodeFailure)
	}

	yaraPath := ""
	yaraIgnored := false
	if strings.TrimSpace(opts.YaraRules) != "" {
		if t.catalog.SupportsYara(opts.OSGroup) {
			f, err := t.writeYaraRules(outputDir, opts.YaraRules)
			if err != nil {
				return nil, WithErrorCode(err, CodeFailure)
			}
			run.add(*f)
			yaraPath = f.Path
		} else {
			yaraIgnored = true
			logger.Warn().Msg("OS group has no Yara scan plugin, ignoring Yara rules")
		}
	}

	plugins, err := t.catalog.Select(opts.OSGroup, yaraPath)
	if err != nil {
		return nil, WithErrorCode(err, CodeUnknownGroup)
	}

	base := volatility.BaseCommand(t.settings.Binary, outputDir, opts.OutputFormat)
	executor := volatility.NewExecutor(t.runner, t.settings.Parallel, logger)

	meta := Meta{
		Plugins:      pluginNames(plugins),
		OSGroup:      opts.OSGroup,
		OutputFormat: opts.OutputFormat,
		Images:       len(inputs),
		YaraIgnored:  yaraIgnored,
	}

	for _, image := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, WithErrorCode(fmt.Errorf("task canceled: %w", err), CodeFailure)
		}

		imgLogger := logger.With().Str("image", image.DisplayName).Logger()
		imgLogger.Info().Int("plugins", len(plugins)).Msg("Processing memory image")

		jobs, err := t.pluginJobs(run, outputDir, image, base, plugins, opts.OutputFormat)
		if err != nil {
			return nil, WithErrorCode(err, CodeFailure)
		}

		var onProgress volatility.ProgressFunc
		if progress != nil {
			name := image.DisplayName
			onProgress = func(p volatility.Progress) {
				progress(Progress{Image: name, Progress: p})
			}
		}
		results := executor.Run(ctx, jobs, onProgress)

		for _, res := range results {
			if res.Succeeded() {
				meta.PluginsCompleted++
				continue
			}
			meta.PluginsFailed++
			meta.Failures = append(meta.Failures, PluginFailure{
				Image:    image.DisplayName,
				Plugin:   res.Plugin,
				ExitCode: res.ExitCode,
				Error:    res.Err.Error(),
			})
		}

		if err := t.writeReport(run, outputDir, image, results); err != nil {
			return nil, WithErrorCode(err, CodeFailure)
		}
		if err := t.collectArtifacts(run, outputDir, imgLogger); err != nil {
			return nil, WithErrorCode(err, CodeFailure)
		}
	}

	if len(run.files) == 0 {
		return nil, WithErrorCode(ErrNoOutputFiles, CodeNoOutput)
	}

	logger.Info().
		Int("output_files", len(run.files)).
		Int("plugins_completed", meta.PluginsCompleted).
		Int("plugins_failed", meta.PluginsFailed).
		Msg("Task finished")

	return &Result{
		OutputFiles: run.files,
		WorkflowID:  req.WorkflowID,
		Command:     strings.Join(base, " "),
		Meta:        meta,
	}, nil
}

// runState tracks the files a run produced, plus the artifact candidates that
// existed before it started, so artifact collection only takes files that
// appeared during this run.
type runState struct {
	files []outputfile.File
	owned map[string]struct{}
}

func (s *runState) skip(path string) {
	s.owned[path] = struct{}{}
}

func (s *runState) add(f outputfile.File) {
	s.files = append(s.files, f)
	s.owned[f.Path] = struct{}{}
}

func (s *runState) owns(path string) bool {
	_, ok := s.owned[path]
	return ok
}

func checkOutputDir(path string) (string, error) {
	if path == "" {
		return "", WithErrorCode(fmt.Errorf("%w: output path is required", ErrInvalidConfig), CodeInvalidConfig)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", WithErrorCode(fmt.Errorf("%w: %v", ErrInvalidConfig, err), CodeInvalidConfig)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", WithErrorCode(fmt.Errorf("%w: output path: %v", ErrInvalidConfig, err), CodeInvalidConfig)
	}
	if !info.IsDir() {
		return "", WithErrorCode(fmt.Errorf("%w: output path %s is not a directory", ErrInvalidConfig, abs), CodeInvalidConfig)
	}
	return abs, nil
}

func (t *Task) lockOutput(ctx context.Context, dir string) (func(), error) {
	lock := flock.New(filepath.Join(dir, lockFileName))

	lockCtx := ctx
	if t.settings.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, t.settings.LockTimeout)
		defer cancel()
	}

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, WithErrorCode(fmt.Errorf("lock output directory: %w", err), CodeFailure)
	}
	if !locked {
		if ctx.Err() != nil {
			return nil, WithErrorCode(fmt.Errorf("task canceled: %w", ctx.Err()), CodeFailure)
		}
		return nil, WithErrorCode(fmt.Errorf("%w: %s", ErrOutputLocked, dir), CodeOutputLocked)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			t.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to release output lock")
		}
	}, nil
}

func (t *Task) writeYaraRules(dir, rules string) (*outputfile.File, error) {
	f, err := outputfile.Create(dir, yaraFileName, DataTypeYara)
	if err != nil {
		return nil, err
	}
	if err := f.WriteString(rules); err != nil {
		return nil, err
	}
	return f, nil
}

func (t *Task) pluginJobs(run *runState, dir string, image outputfile.File, base []string, plugins []volatility.Plugin, format string) ([]volatility.PluginJob, error) {
	invocations := volatility.PluginCommands(base, image.Path, plugins)
	jobs := make([]volatility.PluginJob, 0, len(invocations))
	for _, inv := range invocations {
		name := fmt.Sprintf("%s_%s.%s", image.DisplayName, inv.Plugin.Name, format)
		f, err := outputfile.Create(dir, name, DataTypePlugin)
		if err != nil {
			return nil, err
		}
		f.SourceFileID = image.UUID
		run.add(*f)
		jobs = append(jobs, volatility.PluginJob{Invocation: inv, OutputPath: f.Path})
	}
	return jobs, nil
}

func (t *Task) writeReport(run *runState, dir string, image outputfile.File, results []volatility.PluginResult) error {
	rep := report.New(reportTitle)

	intro := rep.AddSection()
	intro.AddParagraph(fmt.Sprintf("Executed %d plugins against %s:", len(results), image.DisplayName))
	for _, res := range results {
		status := "completed"
		if !res.Succeeded() {
			status = fmt.Sprintf("failed (exit code %d)", res.ExitCode)
		}
		intro.AddBullet(fmt.Sprintf("%s: %s", res.Plugin, status))
	}

	for _, res := range results {
		sec := rep.AddSection()
		sec.AddHeader("Plugin: "+res.Plugin, 2)
		if !res.Succeeded() {
			sec.AddParagraph("Error: " + res.Err.Error())
		}
		output, err := readCapped(res.OutputPath, maxReportSection)
		if err != nil {
			return fmt.Errorf("read plugin output: %w", err)
		}
		if output == "" {
			sec.AddParagraph("No output.")
			continue
		}
		sec.AddCodeBlock(output)
	}

	f, err := outputfile.Create(dir, image.DisplayName+"-volatility-report.md", DataTypeReport)
	if err != nil {
		return err
	}
	f.SourceFileID = image.UUID
	if err := f.WriteString(rep.Markdown()); err != nil {
		return err
	}
	run.add(*f)
	return nil
}

func (t *Task) artifactCandidates(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, t.settings.ArtifactGlob))
	if err != nil {
		return nil, fmt.Errorf("artifact glob: %w", err)
	}
	return matches, nil
}

func (t *Task) markPreexisting(run *runState, dir string) error {
	matches, err := t.artifactCandidates(dir)
	if err != nil {
		return err
	}
	for _, path := range matches {
		run.skip(path)
	}
	return nil
}

func (t *Task) collectArtifacts(run *runState, dir string, logger zerolog.Logger) error {
	matches, err := t.artifactCandidates(dir)
	if err != nil {
		return err
	}

	moved := 0
	for _, path := range matches {
		if run.owns(path) || filepath.Base(path) == lockFileName {
			continue
		}
		f, err := outputfile.Create(dir, filepath.Base(path), DataTypeArtifact)
		if err != nil {
			return err
		}
		if err := f.MoveFrom(path); err != nil {
			return err
		}
		run.add(*f)
		moved++
	}
	if moved > 0 {
		logger.Info().Int("artifacts", moved).Msg("Collected plugin artifacts")
	}
	return nil
}

func readCapped(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return string(data[:limit]) + "\n[output truncated]", nil
	}
	return string(data), nil
}

func pluginNames(plugins []volatility.Plugin) []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}
