// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultConcurrency = 4
	defaultQueueSize   = 100
)

// MemoryManager is an in-memory implementation of Manager.
// It processes jobs using a worker pool with configurable concurrency.
type MemoryManager struct {
	concurrency int
	handlers    Handlers
	queue       chan Job
	logger      zerolog.Logger

	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
	jobCancel  context.CancelFunc
	mu         sync.RWMutex
	started    bool

	recMu     sync.RWMutex
	records   map[string]Record
	resultTTL time.Duration
	now       func() time.Time

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// MemoryOption configures a MemoryManager.
type MemoryOption func(*MemoryManager)

// WithResultTTL drops finished job records once they are older than ttl.
// A zero ttl keeps them for the life of the process.
func WithResultTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryManager) { m.resultTTL = ttl }
}

// NewMemoryManager creates a new in-memory job manager.
// concurrency controls the number of worker goroutines.
// If concurrency <= 0, defaults to 4.
func NewMemoryManager(concurrency int, handlers Handlers, logger zerolog.Logger, opts ...MemoryOption) *MemoryManager {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	m := &MemoryManager{
		concurrency: concurrency,
		handlers:    handlers,
		queue:       make(chan Job, defaultQueueSize),
		logger:      logger.With().Str("component", "jobs").Str("backend", "memory").Logger(),
		records:     make(map[string]Record),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins processing jobs in the background.
func (m *MemoryManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	// Workers stop taking jobs when loopCtx ends; running jobs only stop when
	// jobCtx is canceled by an expired Stop.
	loopCtx, cancel := context.WithCancel(ctx)
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancelFunc = cancel
	m.jobCancel = jobCancel

	for i := 0; i < m.concurrency; i++ {
		m.wg.Add(1)
		go m.worker(loopCtx, jobCtx, i)
	}

	m.started = true
	m.logger.Info().Int("workers", m.concurrency).Msg("Job manager started")

	return nil
}

// Stop gracefully stops all workers and waits for in-flight jobs to complete.
// It respects the context deadline for shutdown timeout.
func (m *MemoryManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}

	m.cancelFunc()
	jobCancel := m.jobCancel
	m.started = false
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		jobCancel()
		m.logger.Info().Msg("Job manager stopped gracefully")
		return nil
	case <-ctx.Done():
		jobCancel()
		<-done
		m.logger.Warn().Msg("Job manager shutdown timed out, in-flight jobs canceled")
		return ctx.Err()
	}
}

// Submit queues job. It does not block when the queue is full.
func (m *MemoryManager) Submit(_ context.Context, job Job) (string, error) {
	job = prepare(job)
	m.save(Record{Job: job, State: StateQueued, UpdatedAt: job.EnqueuedAt})

	select {
	case m.queue <- job:
		m.logger.Debug().Str("job_id", job.ID).Str("job_type", job.Type).Msg("Job queued")
		return job.ID, nil
	default:
		m.recMu.Lock()
		delete(m.records, job.ID)
		m.recMu.Unlock()
		return "", fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(m.queue))
	}
}

// Get returns the record of job id. Expired records are reported as not found.
func (m *MemoryManager) Get(_ context.Context, id string) (Record, error) {
	m.recMu.RLock()
	defer m.recMu.RUnlock()
	rec, ok := m.records[id]
	if !ok || m.expired(rec, m.now()) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Status returns current queue statistics.
func (m *MemoryManager) Status(_ context.Context) (Status, error) {
	return Status{
		Backend:    "memory",
		Workers:    m.concurrency,
		QueueDepth: len(m.queue),
		ActiveJobs: int(m.active.Load()),
		Processed:  m.processed.Load(),
		Failed:     m.failed.Load(),
	}, nil
}

func (m *MemoryManager) save(rec Record) {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	m.records[rec.Job.ID] = rec
	if rec.State.Done() {
		m.evictExpired(m.now())
	}
}

// evictExpired drops finished records older than the result TTL. recMu must
// be held for writing.
func (m *MemoryManager) evictExpired(now time.Time) {
	if m.resultTTL <= 0 {
		return
	}
	for id, rec := range m.records {
		if m.expired(rec, now) {
			delete(m.records, id)
		}
	}
}

func (m *MemoryManager) expired(rec Record, now time.Time) bool {
	return m.resultTTL > 0 && rec.State.Done() && now.Sub(rec.UpdatedAt) > m.resultTTL
}

// worker processes jobs from the queue until loopCtx is canceled.
func (m *MemoryManager) worker(loopCtx, jobCtx context.Context, id int) {
	defer m.wg.Done()

	logger := m.logger.With().Int("worker_id", id).Logger()
	logger.Debug().Msg("Worker started")

	for {
		select {
		case <-loopCtx.Done():
			logger.Debug().Msg("Worker stopping")
			return
		case job := <-m.queue:
			m.active.Add(1)
			rec := execute(jobCtx, m.handlers, job, logger, m.save)
			m.active.Add(-1)
			m.processed.Add(1)
			if rec.State == StateFailed {
				m.failed.Add(1)
			}
		}
	}
}
