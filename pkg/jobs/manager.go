// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package jobs queues task runs and executes them on a worker pool.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Manager defines the interface for background job processing.
// MemoryManager keeps everything in process; RedisManager shares the queue
// and job records between workers through Redis.
type Manager interface {
	// Start begins processing jobs in the background.
	Start(ctx context.Context) error

	// Stop stops taking new jobs and waits for in-flight jobs to complete.
	// In-flight jobs are canceled when ctx expires.
	Stop(ctx context.Context) error

	// Submit queues a job and returns its ID.
	Submit(ctx context.Context, job Job) (string, error)

	// Get returns the current record of a job.
	Get(ctx context.Context, id string) (Record, error)

	// Status returns current queue statistics.
	Status(ctx context.Context) (Status, error)
}

var (
	// ErrNotFound is returned by Get for unknown job IDs.
	ErrNotFound = errors.New("job not found")

	// ErrQueueFull is returned when the queue cannot take more jobs.
	ErrQueueFull = errors.New("job queue is full")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("job manager already started")

	// ErrNoHandler is recorded for jobs of an unregistered type.
	ErrNoHandler = errors.New("no handler registered for job type")
)

// Job represents a unit of work to be processed.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// State is the lifecycle stage of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Done reports whether the job reached a final state.
func (s State) Done() bool {
	return s == StateSucceeded || s == StateFailed
}

// Record is the observable state of a job.
type Record struct {
	Job       Job             `json:"job"`
	State     State           `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Progress  json.RawMessage `json:"progress,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Status holds job manager statistics.
type Status struct {
	Backend    string `json:"backend"`
	Workers    int    `json:"workers"`
	QueueDepth int    `json:"queue_depth"`
	ActiveJobs int    `json:"active_jobs"`
	Processed  int64  `json:"processed"`
	Failed     int64  `json:"failed"`
}

// ProgressFunc publishes a progress value of a running job. The value is
// stored as JSON.
type ProgressFunc func(progress any)

// Handler executes one job and returns its JSON result.
type Handler func(ctx context.Context, job Job, progress ProgressFunc) (json.RawMessage, error)

// Handlers maps job types to their handlers.
type Handlers map[string]Handler

// prepare fills in the ID and enqueue time of a new job.
func prepare(job Job) Job {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return job
}

// errorCode extracts a code from errors implementing Code() string.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
