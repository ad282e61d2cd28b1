// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Summary represents the outcome of a task run.
type Summary struct {
	Operation   string        `json:"operation"`
	OutputFiles int           `json:"output_files"`
	Success     int           `json:"success_count"`
	Failed      int           `json:"failed_count"`
	Errors      []ErrorDetail `json:"errors,omitempty"`
	Notes       []string      `json:"notes,omitempty"`
}

// ErrorDetail describes one failed plugin.
type ErrorDetail struct {
	Image  string `json:"image"`
	Plugin string `json:"plugin"`
	Error  string `json:"error"`
}

const maxErrorsToShow = 5

// PrintRunSummary prints counts, the first failures and any notes.
// Example output:
//
//	Summary:
//	  ✓ Plugins completed: 3
//	  ✗ Plugins failed:    1
//	  Output files:        6
//
//	Failed plugins:
//	  - mem.raw windows.pstree: exit status 1
func (f *formatter) PrintRunSummary(summary Summary) error {
	if f.opts.Quiet {
		return nil
	}

	if f.jsonMode() {
		return f.PrintJSON(summary)
	}

	var sb strings.Builder
	sb.WriteString("\nSummary:\n")
	sb.WriteString(f.paint(color.FgGreen, fmt.Sprintf("  ✓ Plugins completed: %d\n", summary.Success)))
	if summary.Failed > 0 {
		sb.WriteString(f.paint(color.FgRed, fmt.Sprintf("  ✗ Plugins failed:    %d\n", summary.Failed)))
	}
	sb.WriteString(fmt.Sprintf("  Output files:        %d\n", summary.OutputFiles))

	if len(summary.Errors) > 0 {
		sb.WriteString("\nFailed plugins:\n")
		for i, e := range summary.Errors {
			if i >= maxErrorsToShow {
				sb.WriteString(fmt.Sprintf("  ... and %d more (use --output json for full list)\n", len(summary.Errors)-maxErrorsToShow))
				break
			}
			sb.WriteString(fmt.Sprintf("  - %s %s: %s\n", e.Image, e.Plugin, e.Error))
		}
	}

	for _, note := range summary.Notes {
		sb.WriteString(f.paint(color.FgYellow, fmt.Sprintf("  ⚠ %s\n", note)))
	}

	_, err := f.stdout.Write([]byte(sb.String()))
	return err
}

// PrintFailure prints a failed operation and suggestions.
// Example output:
//
//	✗ Failed to run volatility: unknown OS group "bsd"
//
//	💡 Suggestions:
//	  → List available groups:      volworker plugins
func (f *formatter) PrintFailure(operation string, err error, code string, suggestions []string) error {
	if f.opts.Quiet {
		return nil
	}

	if f.jsonMode() {
		return f.PrintJSON(map[string]any{
			"success":     false,
			"operation":   operation,
			"error":       err.Error(),
			"error_code":  code,
			"suggestions": suggestions,
		})
	}

	var sb strings.Builder
	sb.WriteString(f.paint(color.FgRed, fmt.Sprintf("✗ Failed to %s: %v\n", operation, err)))

	if len(suggestions) > 0 {
		sb.WriteString("\n💡 Suggestions:\n")
		for _, s := range suggestions {
			sb.WriteString(fmt.Sprintf("  → %s\n", s))
		}
	}

	_, writeErr := f.stderr.Write([]byte(sb.String()))
	return writeErr
}

func (f *formatter) paint(attr color.Attribute, text string) string {
	if !f.opts.Color {
		return text
	}
	return color.New(attr).Sprint(text)
}
