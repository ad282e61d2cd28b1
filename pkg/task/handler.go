// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vulntor/volworker/pkg/jobs"
)

// NewJobHandler adapts t to the job system. The job payload is a JSON Request
// and the job result is the JSON Result.
func NewJobHandler(t *Task) jobs.Handler {
	return func(ctx context.Context, job jobs.Job, progress jobs.ProgressFunc) (json.RawMessage, error) {
		var req Request
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return nil, WithErrorCode(fmt.Errorf("%w: payload: %v", ErrInvalidConfig, err), CodeInvalidConfig)
		}
		if err := validate.Struct(req); err != nil {
			return nil, WithErrorCode(fmt.Errorf("%w: %v", ErrInvalidConfig, err), CodeInvalidConfig)
		}
		if req.WorkflowID == "" {
			req.WorkflowID = job.ID
		}

		var onProgress ProgressFunc
		if progress != nil {
			onProgress = func(p Progress) { progress(p) }
		}

		res, err := t.Run(ctx, req, onProgress)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		return data, nil
	}
}

// NewJob wraps req into a job of this task's type.
func NewJob(req Request) (jobs.Job, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("marshal request: %w", err)
	}
	return jobs.Job{Type: Name, Payload: payload}, nil
}
