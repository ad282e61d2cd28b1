// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type codeErr struct{ error }

func (codeErr) Code() string { return "TASK_NO_INPUT" }

func echoHandlers() Handlers {
	return Handlers{
		"echo": func(_ context.Context, job Job, progress ProgressFunc) (json.RawMessage, error) {
			progress(map[string]int{"plugins_completed": 1})
			return job.Payload, nil
		},
		"fail": func(context.Context, Job, ProgressFunc) (json.RawMessage, error) {
			return nil, codeErr{errors.New("no input files provided")}
		},
		"panic": func(context.Context, Job, ProgressFunc) (json.RawMessage, error) {
			panic("boom")
		},
		"block": func(ctx context.Context, _ Job, _ ProgressFunc) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func waitDone(t *testing.T, mgr Manager, id string) Record {
	t.Helper()
	var rec Record
	require.Eventually(t, func() bool {
		var err error
		rec, err = mgr.Get(context.Background(), id)
		return err == nil && rec.State.Done()
	}, 5*time.Second, 10*time.Millisecond)
	return rec
}

func stopManager(t *testing.T, mgr Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, mgr.Stop(ctx))
}

func TestNewMemoryManager_DefaultConcurrency(t *testing.T) {
	mgr := NewMemoryManager(0, nil, zerolog.Nop())
	require.Equal(t, defaultConcurrency, mgr.concurrency)

	mgr = NewMemoryManager(-1, nil, zerolog.Nop())
	require.Equal(t, defaultConcurrency, mgr.concurrency)
}

func TestMemoryManager_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := NewMemoryManager(2, nil, zerolog.Nop())
	require.NoError(t, mgr.Start(context.Background()))
	require.ErrorIs(t, mgr.Start(context.Background()), ErrAlreadyStarted)

	stopManager(t, mgr)
	require.NoError(t, mgr.Stop(context.Background()), "second stop is a no-op")
}

func TestMemoryManager_ProcessesJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := NewMemoryManager(2, echoHandlers(), zerolog.Nop())
	require.NoError(t, mgr.Start(context.Background()))
	defer stopManager(t, mgr)

	id, err := mgr.Submit(context.Background(), Job{Type: "echo", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec := waitDone(t, mgr, id)
	assert.Equal(t, StateSucceeded, rec.State)
	assert.JSONEq(t, `{"a":1}`, string(rec.Result))
	assert.JSONEq(t, `{"plugins_completed":1}`, string(rec.Progress))
	assert.False(t, rec.Job.EnqueuedAt.IsZero())

	require.Eventually(t, func() bool {
		status, err := mgr.Status(context.Background())
		return err == nil && status.Processed == 1
	}, 2*time.Second, 10*time.Millisecond)
	status, err := mgr.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", status.Backend)
	assert.Equal(t, 2, status.Workers)
}

func TestMemoryManager_FailedJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := NewMemoryManager(1, echoHandlers(), zerolog.Nop())
	require.NoError(t, mgr.Start(context.Background()))
	defer stopManager(t, mgr)

	failID, err := mgr.Submit(context.Background(), Job{Type: "fail"})
	require.NoError(t, err)
	panicID, err := mgr.Submit(context.Background(), Job{Type: "panic"})
	require.NoError(t, err)
	unknownID, err := mgr.Submit(context.Background(), Job{Type: "nope"})
	require.NoError(t, err)

	rec := waitDone(t, mgr, failID)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, "TASK_NO_INPUT", rec.ErrorCode)
	assert.Equal(t, "no input files provided", rec.Error)

	rec = waitDone(t, mgr, panicID)
	assert.Equal(t, StateFailed, rec.State)
	assert.Contains(t, rec.Error, "panicked")

	rec = waitDone(t, mgr, unknownID)
	assert.Equal(t, StateFailed, rec.State)
	assert.Contains(t, rec.Error, ErrNoHandler.Error())

	require.Eventually(t, func() bool {
		status, err := mgr.Status(context.Background())
		return err == nil && status.Failed == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryManager_GetUnknown(t *testing.T) {
	mgr := NewMemoryManager(1, nil, zerolog.Nop())
	_, err := mgr.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryManager_QueueFull(t *testing.T) {
	mgr := NewMemoryManager(1, nil, zerolog.Nop())
	for i := 0; i < defaultQueueSize; i++ {
		_, err := mgr.Submit(context.Background(), Job{Type: "echo"})
		require.NoError(t, err)
	}

	_, err := mgr.Submit(context.Background(), Job{ID: "overflow", Type: "echo"})
	require.ErrorIs(t, err, ErrQueueFull)
	_, err = mgr.Get(context.Background(), "overflow")
	require.ErrorIs(t, err, ErrNotFound, "rejected jobs leave no record")
}

func TestMemoryManager_StopTimeoutCancelsJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := NewMemoryManager(1, echoHandlers(), zerolog.Nop())
	require.NoError(t, mgr.Start(context.Background()))

	id, err := mgr.Submit(context.Background(), Job{Type: "block"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		rec, err := mgr.Get(context.Background(), id)
		return err == nil && rec.State == StateRunning
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, mgr.Stop(ctx), context.DeadlineExceeded)

	rec, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
}

func TestMemoryManager_ParentCancelKeepsRunningJob(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	handlers := Handlers{
		"wait": func(context.Context, Job, ProgressFunc) (json.RawMessage, error) {
			<-release
			return json.RawMessage(`"ok"`), nil
		},
	}
	mgr := NewMemoryManager(1, handlers, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, mgr.Start(ctx))

	id, err := mgr.Submit(context.Background(), Job{Type: "wait"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		rec, _ := mgr.Get(context.Background(), id)
		return rec.State == StateRunning
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	close(release)

	rec := waitDone(t, mgr, id)
	assert.Equal(t, StateSucceeded, rec.State)
	stopManager(t, mgr)
}

func TestMemoryManager_ResultTTLEvictsFinishedRecords(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var skew atomic.Int64
	mgr := NewMemoryManager(1, echoHandlers(), zerolog.Nop(), WithResultTTL(time.Minute))
	mgr.now = func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }
	require.NoError(t, mgr.Start(context.Background()))
	defer stopManager(t, mgr)

	first, err := mgr.Submit(context.Background(), Job{Type: "echo", Payload: json.RawMessage(`1`)})
	require.NoError(t, err)
	waitDone(t, mgr, first)

	skew.Store(int64(2 * time.Minute))
	_, err = mgr.Get(context.Background(), first)
	require.ErrorIs(t, err, ErrNotFound)

	second, err := mgr.Submit(context.Background(), Job{Type: "echo", Payload: json.RawMessage(`2`)})
	require.NoError(t, err)
	waitDone(t, mgr, second)

	mgr.recMu.RLock()
	_, kept := mgr.records[first]
	remaining := len(mgr.records)
	mgr.recMu.RUnlock()
	assert.False(t, kept, "finishing a job sweeps expired records")
	assert.Equal(t, 1, remaining)
}

func TestMemoryManager_ZeroTTLKeepsRecords(t *testing.T) {
	mgr := NewMemoryManager(1, echoHandlers(), zerolog.Nop())
	rec := Record{Job: Job{ID: "old"}, State: StateSucceeded, UpdatedAt: time.Now().Add(-48 * time.Hour)}
	mgr.save(rec)

	got, err := mgr.Get(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, got.State)
}
