// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package inbox turns memory images dropped into a directory into task jobs.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/outputfile"
	"github.com/vulntor/volworker/pkg/task"
)

const (
	defaultDebounce = 2 * time.Second
	timestampLayout = "20060102T150405Z"
)

// DefaultExtensions are the memory image extensions picked up by default.
var DefaultExtensions = []string{".raw", ".mem", ".vmem", ".lime", ".dmp", ".img", ".bin", ".core"}

// Submitter queues jobs. jobs.Manager satisfies it.
type Submitter interface {
	Submit(ctx context.Context, job jobs.Job) (string, error)
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is submitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDelay = d
		}
	}
}

// WithExtensions replaces the accepted image extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions[ext] = struct{}{}
		}
	}
}

// WithTaskConfig sets the task options of submitted jobs.
func WithTaskConfig(cfg map[string]any) Option {
	return func(w *Watcher) {
		w.taskConfig = cfg
	}
}

// Watcher watches an inbox directory and submits a job per new image.
//
// Images are submitted once their writes have been quiet for the debounce
// delay, so a copy in progress is not picked up half-written. Each image is
// submitted at most once per Watcher.
type Watcher struct {
	dir        string
	outputRoot string
	submitter  Submitter
	taskConfig map[string]any
	extensions map[string]struct{}

	watcher       *fsnotify.Watcher
	debounceDelay time.Duration
	logger        zerolog.Logger
	now           func() time.Time

	mu        sync.Mutex
	timers    map[string]debounceTimer
	nextGen   uint64
	submitted map[string]string
	pending   sync.WaitGroup
}

// New creates a Watcher for dir. Output directories are created under outputRoot.
func New(dir, outputRoot string, submitter Submitter, logger zerolog.Logger, opts ...Option) (*Watcher, error) {
	if dir == "" || outputRoot == "" {
		return nil, fmt.Errorf("inbox and output root directories are required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:           dir,
		outputRoot:    outputRoot,
		submitter:     submitter,
		watcher:       fw,
		debounceDelay: defaultDebounce,
		logger:        logger.With().Str("component", "inbox").Logger(),
		now:           time.Now,
		timers:        make(map[string]debounceTimer),
		submitted:     make(map[string]string),
	}
	WithExtensions(DefaultExtensions...)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the inbox until ctx is canceled. It should be run in a
// separate goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.logger.Error().Err(err).Str("dir", w.dir).Msg("Failed to watch inbox directory")
		return err
	}

	w.logger.Info().
		Str("dir", w.dir).
		Str("output_root", w.outputRoot).
		Dur("debounce", w.debounceDelay).
		Msg("Started watching inbox")

	defer func() {
		w.stopTimers()
		w.pending.Wait()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
		w.logger.Info().Msg("Stopped watching inbox")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.accepts(event.Name) {
				continue
			}

			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				w.logger.Debug().Str("op", event.Op.String()).Str("file", event.Name).Msg("Detected image change")
				w.schedule(ctx, event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.cancel(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// Close releases the underlying file watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Submitted returns a copy of the image path to job ID mapping.
func (w *Watcher) Submitted() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.submitted))
	for k, v := range w.submitted {
		out[k] = v
	}
	return out
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// debounceTimer is the quiet period timer of one path. gen tells a callback
// that already fired apart from the timer that replaced it.
type debounceTimer struct {
	timer *time.Timer
	gen   uint64
}

// schedule (re)starts the quiet period of path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, done := w.submitted[path]; done {
		return
	}
	if dt, ok := w.timers[path]; ok {
		if dt.timer.Stop() {
			w.pending.Done()
		}
	}

	w.nextGen++
	gen := w.nextGen
	w.pending.Add(1)
	w.timers[path] = debounceTimer{
		gen: gen,
		timer: time.AfterFunc(w.debounceDelay, func() {
			defer w.pending.Done()
			w.fire(ctx, path, gen)
		}),
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if dt, ok := w.timers[path]; ok {
		if dt.timer.Stop() {
			w.pending.Done()
		}
		delete(w.timers, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, dt := range w.timers {
		if dt.timer.Stop() {
			w.pending.Done()
		}
		delete(w.timers, path)
	}
}

// fire submits path unless the timer of generation gen was replaced or
// canceled while the callback waited for the lock.
func (w *Watcher) fire(ctx context.Context, path string, gen uint64) {
	w.mu.Lock()
	if dt, ok := w.timers[path]; !ok || dt.gen != gen {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	if _, done := w.submitted[path]; done {
		w.mu.Unlock()
		return
	}
	w.submitted[path] = ""
	w.mu.Unlock()

	logger := w.logger.With().Str("file", path).Logger()

	id, err := w.submit(ctx, path)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to submit image")
		w.mu.Lock()
		delete(w.submitted, path)
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.submitted[path] = id
	w.mu.Unlock()
	logger.Info().Str("job_id", id).Msg("Submitted memory image")
}

func (w *Watcher) submit(ctx context.Context, path string) (string, error) {
	image, err := outputfile.FromPath(path)
	if err != nil {
		return "", err
	}

	outDir := filepath.Join(w.outputRoot, fmt.Sprintf("%s-%s", image.DisplayName, w.now().UTC().Format(timestampLayout)))
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	job, err := task.NewJob(task.Request{
		InputFiles: []outputfile.File{image},
		OutputPath: outDir,
		TaskConfig: w.taskConfig,
	})
	if err != nil {
		return "", err
	}
	return w.submitter.Submit(ctx, job)
}
