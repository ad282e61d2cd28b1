// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// execute runs job with its registered handler, reporting every state
// change through update. It returns the final record.
func execute(ctx context.Context, handlers Handlers, job Job, logger zerolog.Logger, update func(Record)) Record {
	var mu sync.Mutex
	rec := Record{Job: job, State: StateRunning, UpdatedAt: time.Now().UTC()}
	update(rec)

	logger = logger.With().Str("job_id", job.ID).Str("job_type", job.Type).Logger()
	start := time.Now()

	h, ok := handlers[job.Type]
	if !ok {
		rec.State = StateFailed
		rec.Error = fmt.Errorf("%w: %q", ErrNoHandler, job.Type).Error()
		rec.UpdatedAt = time.Now().UTC()
		update(rec)
		logger.Warn().Msg("Dropping job without handler")
		return rec
	}

	progress := func(p any) {
		data, err := json.Marshal(p)
		if err != nil {
			logger.Debug().Err(err).Msg("Discarding unserializable progress")
			return
		}
		mu.Lock()
		defer mu.Unlock()
		rec.Progress = data
		rec.UpdatedAt = time.Now().UTC()
		update(rec)
	}

	logger.Info().Msg("Processing job")
	result, err := safeCall(ctx, h, job, progress)

	mu.Lock()
	defer mu.Unlock()
	rec.UpdatedAt = time.Now().UTC()
	if err != nil {
		rec.State = StateFailed
		rec.Error = err.Error()
		rec.ErrorCode = errorCode(err)
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Job failed")
	} else {
		rec.State = StateSucceeded
		rec.Result = result
		logger.Info().Dur("duration", time.Since(start)).Msg("Job completed")
	}
	update(rec)
	return rec
}

func safeCall(ctx context.Context, h Handler, job Job, progress ProgressFunc) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return h(ctx, job, progress)
}
