// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultPollTimeout = time.Second
	errorBackoff       = time.Second
)

// RedisOptions configures a RedisManager.
type RedisOptions struct {
	URL         string
	QueueName   string
	KeyPrefix   string
	ResultTTL   time.Duration
	Concurrency int
	// PollTimeout bounds each blocking pop; Stop waits at most this long for idle workers.
	PollTimeout time.Duration
	Retry       RetryConfig
}

// RedisManager consumes jobs from a Redis list. Job records are stored as
// JSON under <prefix>:job:<id> and every record change is published on
// <prefix>:events.
type RedisManager struct {
	client     *redis.Client
	ownsClient bool
	opts       RedisOptions
	handlers   Handlers
	logger     zerolog.Logger

	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
	jobCancel  context.CancelFunc
	mu         sync.Mutex
	started    bool

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewRedisManager connects to opts.URL.
func NewRedisManager(opts RedisOptions, handlers Handlers, logger zerolog.Logger) (*RedisManager, error) {
	if opts.URL == "" {
		return nil, errors.New("redis url is required")
	}
	clientOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	m := NewRedisManagerWithClient(redis.NewClient(clientOpts), opts, handlers, logger)
	m.ownsClient = true
	return m, nil
}

// NewRedisManagerWithClient uses an existing client. The caller keeps
// ownership of client.
func NewRedisManagerWithClient(client *redis.Client, opts RedisOptions, handlers Handlers, logger zerolog.Logger) *RedisManager {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.QueueName == "" {
		opts.QueueName = "volworker:tasks"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "volworker"
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	m := &RedisManager{
		client:   client,
		opts:     opts,
		handlers: handlers,
		logger:   logger.With().Str("component", "jobs").Str("backend", "redis").Logger(),
	}
	if m.opts.Retry.OnRetry == nil {
		m.opts.Retry.OnRetry = func(attempt int, wait time.Duration, err error) {
			m.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("redis unavailable, retrying")
		}
	}
	return m
}

func (m *RedisManager) recordKey(id string) string {
	return m.opts.KeyPrefix + ":job:" + id
}

// EventsChannel is the pub/sub channel carrying record updates.
func (m *RedisManager) EventsChannel() string {
	return m.opts.KeyPrefix + ":events"
}

// Ping checks the connection, retrying transient failures.
func (m *RedisManager) Ping(ctx context.Context) error {
	return WithRetry(ctx, m.opts.Retry, func(ctx context.Context) error {
		return m.client.Ping(ctx).Err()
	})
}

// Start verifies the connection and begins consuming the queue.
func (m *RedisManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.Ping(ctx); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancelFunc = cancel
	m.jobCancel = jobCancel

	for i := 0; i < m.opts.Concurrency; i++ {
		m.wg.Add(1)
		go m.worker(loopCtx, jobCtx, i)
	}

	m.started = true
	m.logger.Info().
		Int("workers", m.opts.Concurrency).
		Str("queue", m.opts.QueueName).
		Msg("Job manager started")
	return nil
}

// Stop stops consuming and waits for in-flight jobs. A client created by
// NewRedisManager is closed.
func (m *RedisManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return m.closeClient()
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

	var err error
	select {
	case <-done:
		m.logger.Info().Msg("Job manager stopped gracefully")
	case <-ctx.Done():
		jobCancel()
		<-done
		m.logger.Warn().Msg("Job manager shutdown timed out, in-flight jobs canceled")
		err = ctx.Err()
	}
	jobCancel()

	if cerr := m.closeClient(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (m *RedisManager) closeClient() error {
	if !m.ownsClient {
		return nil
	}
	m.ownsClient = false
	return m.client.Close()
}

// Submit stores a queued record and pushes the job onto the queue.
func (m *RedisManager) Submit(ctx context.Context, job Job) (string, error) {
	job = prepare(job)
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := m.save(ctx, Record{Job: job, State: StateQueued, UpdatedAt: job.EnqueuedAt}); err != nil {
		return "", err
	}
	if err := m.client.RPush(ctx, m.opts.QueueName, data).Err(); err != nil {
		return "", fmt.Errorf("push job: %w", err)
	}
	m.logger.Debug().Str("job_id", job.ID).Str("job_type", job.Type).Msg("Job queued")
	return job.ID, nil
}

// Get loads the record of job id.
func (m *RedisManager) Get(ctx context.Context, id string) (Record, error) {
	data, err := m.client.Get(ctx, m.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load job record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode job record: %w", err)
	}
	return rec, nil
}

// Status reports the queue length and the counters of this process.
func (m *RedisManager) Status(ctx context.Context) (Status, error) {
	depth, err := m.client.LLen(ctx, m.opts.QueueName).Result()
	if err != nil {
		return Status{}, fmt.Errorf("queue length: %w", err)
	}
	return Status{
		Backend:    "redis",
		Workers:    m.opts.Concurrency,
		QueueDepth: int(depth),
		ActiveJobs: int(m.active.Load()),
		Processed:  m.processed.Load(),
		Failed:     m.failed.Load(),
	}, nil
}

// Watch calls fn with every update of job id until it reaches a final state
// or ctx ends.
func (m *RedisManager) Watch(ctx context.Context, id string, fn func(Record)) (Record, error) {
	sub := m.client.Subscribe(ctx, m.EventsChannel())
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return Record{}, fmt.Errorf("subscribe: %w", err)
	}

	// The job may have finished before the subscription was active.
	rec, err := m.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	fn(rec)
	if rec.State.Done() {
		return rec, nil
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return rec, errors.New("subscription closed")
			}
			var update Record
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				m.logger.Debug().Err(err).Msg("Skipping malformed job event")
				continue
			}
			if update.Job.ID != id {
				continue
			}
			rec = update
			fn(rec)
			if rec.State.Done() {
				return rec, nil
			}
		}
	}
}

func (m *RedisManager) save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	if err := m.client.Set(ctx, m.recordKey(rec.Job.ID), data, m.opts.ResultTTL).Err(); err != nil {
		return fmt.Errorf("store job record: %w", err)
	}
	if err := m.client.Publish(ctx, m.EventsChannel(), data).Err(); err != nil {
		return fmt.Errorf("publish job record: %w", err)
	}
	return nil
}

func (m *RedisManager) worker(loopCtx, jobCtx context.Context, id int) {
	defer m.wg.Done()

	logger := m.logger.With().Int("worker_id", id).Logger()
	logger.Debug().Msg("Worker started")

	for {
		if loopCtx.Err() != nil {
			logger.Debug().Msg("Worker stopping")
			return
		}

		res, err := m.client.BLPop(loopCtx, m.opts.PollTimeout, m.opts.QueueName).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if loopCtx.Err() != nil {
				continue
			}
			logger.Warn().Err(err).Msg("Queue pop failed")
			select {
			case <-loopCtx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			logger.Error().Err(err).Msg("Discarding malformed job")
			continue
		}

		m.active.Add(1)
		rec := execute(jobCtx, m.handlers, job, logger, func(r Record) {
			if err := m.save(jobCtx, r); err != nil {
				logger.Warn().Err(err).Str("job_id", r.Job.ID).Msg("Failed to store job record")
			}
		})
		m.active.Add(-1)
		m.processed.Add(1)
		if rec.State == StateFailed {
			m.failed.Add(1)
		}
	}
}
