// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package task

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/vulntor/volworker/pkg/outputfile"
	"github.com/vulntor/volworker/pkg/volatility"
)

// PluginFailure records a plugin that did not exit cleanly.
type PluginFailure struct {
	Image    string `json:"image"`
	Plugin   string `json:"plugin"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error"`
}

// Meta summarizes a run.
type Meta struct {
	Plugins          []string           `json:"plugins"`
	OSGroup          volatility.OSGroup `json:"os_group"`
	OutputFormat     string             `json:"output_format"`
	Images           int                `json:"images"`
	PluginsCompleted int                `json:"plugins_completed"`
	PluginsFailed    int                `json:"plugins_failed"`
	Failures         []PluginFailure    `json:"failures,omitempty"`
	YaraIgnored      bool               `json:"yara_ignored,omitempty"`
}

// Result is what a task hands to the next task in a workflow.
type Result struct {
	OutputFiles []outputfile.File `json:"output_files"`
	WorkflowID  string            `json:"workflow_id"`
	Command     string            `json:"command"`
	Meta        Meta              `json:"meta"`
}

// Encode serializes the result as base64-encoded JSON.
func (r *Result) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeResult parses a result produced by Encode.
func DecodeResult(encoded string) (*Result, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &r, nil
}

// InputFiles picks the files a run works on. A previous task's result wins
// over explicitly listed input files.
func InputFiles(pipeResult string, inputFiles []outputfile.File) ([]outputfile.File, error) {
	if pipeResult != "" {
		prev, err := DecodeResult(pipeResult)
		if err != nil {
			return nil, WithErrorCode(fmt.Errorf("%w: pipe result: %v", ErrInvalidConfig, err), CodeInvalidConfig)
		}
		return prev.OutputFiles, nil
	}
	return inputFiles, nil
}
