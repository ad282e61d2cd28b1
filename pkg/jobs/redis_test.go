// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisManager(t *testing.T, handlers Handlers) (*RedisManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr := NewRedisManagerWithClient(client, RedisOptions{
		QueueName:   "test:queue",
		KeyPrefix:   "test",
		ResultTTL:   time.Hour,
		Concurrency: 2,
		Retry:       NoRetry(),
	}, handlers, zerolog.Nop())
	return mgr, mr
}

func TestNewRedisManager_InvalidURL(t *testing.T) {
	_, err := NewRedisManager(RedisOptions{}, nil, zerolog.Nop())
	require.Error(t, err)

	_, err = NewRedisManager(RedisOptions{URL: "http://example.com"}, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestNewRedisManager_FromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	mgr, err := NewRedisManager(RedisOptions{URL: "redis://" + mr.Addr() + "/0"}, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, mgr.Ping(context.Background()))
	require.NoError(t, mgr.Stop(context.Background()))
	assert.Equal(t, "volworker:tasks", mgr.opts.QueueName)
}

func TestRedisManager_SubmitQueuesJob(t *testing.T) {
	mgr, mr := newRedisManager(t, nil)

	id, err := mgr.Submit(context.Background(), Job{Type: "echo", Payload: json.RawMessage(`{"x":true}`)})
	require.NoError(t, err)

	items, err := mr.List("test:queue")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var queued Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &queued))
	assert.Equal(t, id, queued.ID)
	assert.Equal(t, "echo", queued.Type)

	rec, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, rec.State)
	assert.Equal(t, time.Hour, mr.TTL("test:job:"+id))

	status, err := mgr.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "redis", status.Backend)
	assert.Equal(t, 1, status.QueueDepth)
}

func TestRedisManager_ProcessesJobs(t *testing.T) {
	mgr, _ := newRedisManager(t, echoHandlers())
	require.NoError(t, mgr.Start(context.Background()))
	defer stopManager(t, mgr)

	okID, err := mgr.Submit(context.Background(), Job{Type: "echo", Payload: json.RawMessage(`[1,2]`)})
	require.NoError(t, err)
	failID, err := mgr.Submit(context.Background(), Job{Type: "fail"})
	require.NoError(t, err)

	rec := waitDone(t, mgr, okID)
	assert.Equal(t, StateSucceeded, rec.State)
	assert.JSONEq(t, `[1,2]`, string(rec.Result))
	assert.JSONEq(t, `{"plugins_completed":1}`, string(rec.Progress))

	rec = waitDone(t, mgr, failID)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, "TASK_NO_INPUT", rec.ErrorCode)
}

func TestRedisManager_Watch(t *testing.T) {
	release := make(chan struct{})
	handlers := Handlers{
		"wait": func(_ context.Context, job Job, progress ProgressFunc) (json.RawMessage, error) {
			<-release
			progress("half")
			return json.RawMessage(`"done"`), nil
		},
	}
	mgr, _ := newRedisManager(t, handlers)
	require.NoError(t, mgr.Start(context.Background()))
	defer stopManager(t, mgr)

	id, err := mgr.Submit(context.Background(), Job{Type: "wait"})
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		states []State
	)
	done := make(chan Record, 1)
	go func() {
		rec, err := mgr.Watch(context.Background(), id, func(r Record) {
			mu.Lock()
			states = append(states, r.State)
			mu.Unlock()
		})
		assert.NoError(t, err)
		done <- rec
	}()

	// Let the watcher subscribe before the job finishes.
	time.Sleep(100 * time.Millisecond)
	close(release)

	select {
	case rec := <-done:
		assert.Equal(t, StateSucceeded, rec.State)
		assert.JSONEq(t, `"done"`, string(rec.Result))
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, StateSucceeded, states[len(states)-1])
}

func TestRedisManager_GetUnknown(t *testing.T) {
	mgr, _ := newRedisManager(t, nil)
	_, err := mgr.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisManager_StartFailsWhenUnreachable(t *testing.T) {
	mgr, mr := newRedisManager(t, nil)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Error(t, mgr.Start(ctx))
}
