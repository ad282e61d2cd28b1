// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package task

import (
	"errors"
	"net/http"

	"github.com/vulntor/volworker/pkg/volatility"
)

// Sentinel errors for task failures.
var (
	// ErrNoInputFiles indicates the request carried no memory images.
	ErrNoInputFiles = errors.New("no input files provided")

	// ErrUnknownOSGroup indicates the requested OS group has no plugins.
	ErrUnknownOSGroup = volatility.ErrUnknownOSGroup

	// ErrInvalidConfig indicates malformed task options or request fields.
	ErrInvalidConfig = errors.New("invalid task configuration")

	// ErrOutputLocked indicates another task holds the output directory.
	ErrOutputLocked = errors.New("output directory is locked by another task")

	// ErrNoOutputFiles indicates the run produced nothing.
	ErrNoOutputFiles = errors.New("no output files generated")
)

// Error codes reported by the CLI and the job API.
const (
	CodeNoInput       = "TASK_NO_INPUT"
	CodeUnknownGroup  = "TASK_UNKNOWN_OS_GROUP"
	CodeInvalidConfig = "TASK_INVALID_CONFIG"
	CodeOutputLocked  = "TASK_OUTPUT_LOCKED"
	CodeNoOutput      = "TASK_NO_OUTPUT"
	CodeFailure       = "TASK_FAILURE"
)

// codedError wraps an error with an explicit error code.
type codedError struct {
	error
	code string
}

func (e *codedError) Error() string {
	return e.error.Error()
}

func (e *codedError) Unwrap() error {
	return e.error
}

func (e *codedError) Code() string {
	return e.code
}

// WithErrorCode wraps err with a specific error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &codedError{error: err, code: code}
}

// ErrorCode resolves a task error into its error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrNoInputFiles):
		return CodeNoInput
	case errors.Is(err, ErrUnknownOSGroup):
		return CodeUnknownGroup
	case errors.Is(err, ErrInvalidConfig):
		return CodeInvalidConfig
	case errors.Is(err, ErrOutputLocked):
		return CodeOutputLocked
	case errors.Is(err, ErrNoOutputFiles):
		return CodeNoOutput
	}

	return CodeFailure
}

// ExitCode maps task errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ErrorCode(err) {
	case CodeNoInput, CodeUnknownGroup, CodeInvalidConfig:
		return 2
	case CodeOutputLocked:
		return 3
	default:
		return 1
	}
}

// HTTPStatus maps task errors to HTTP status codes.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch ErrorCode(err) {
	case CodeNoInput, CodeUnknownGroup, CodeInvalidConfig:
		return http.StatusBadRequest
	case CodeOutputLocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Suggestions provides CLI hints for task errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case CodeNoInput:
		return []string{
			"Pass a memory image:        volworker run memory.raw",
		}
	case CodeUnknownGroup:
		return []string{
			"List available groups:      volworker plugins",
			"Pick a group:               volworker run --os-group lin memory.lime",
		}
	case CodeInvalidConfig:
		return []string{
			"Supported formats:          txt, json, md",
			"Inspect task options:       volworker metadata",
		}
	case CodeOutputLocked:
		return []string{
			"Wait for the running task or use another --output-dir",
		}
	default:
		return []string{
			"Check the vol installation: volworker doctor",
			"Retry with verbose logs:    volworker run <image> -v",
		}
	}
}
