// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// OutputMode selects how command results are rendered.
type OutputMode string

const (
	ModeTable OutputMode = "table"
	ModeJSON  OutputMode = "json"
)

// ParseMode accepts the --output values, case-insensitively.
func ParseMode(value string) (OutputMode, error) {
	switch mode := OutputMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case ModeTable, ModeJSON:
		return mode, nil
	default:
		return ModeTable, fmt.Errorf("invalid output mode %q (want %s or %s)", value, ModeTable, ModeJSON)
	}
}

// Formatter renders command results. In JSON mode stdout carries a single
// machine readable document and human chatter moves to stderr.
type Formatter interface {
	PrintJSON(data any) error
	// PrintTable writes aligned columns, or an array of header-keyed
	// objects in JSON mode.
	PrintTable(headers []string, rows [][]string) error
	PrintSummary(message string) error
	PrintRunSummary(summary Summary) error
	PrintFailure(operation string, err error, code string, suggestions []string) error
	Mode() OutputMode
	Color() bool
}

// Options configures New.
type Options struct {
	Mode  OutputMode
	Quiet bool
	Color bool
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	opts   Options
}

// New returns a Formatter writing results to stdout and failures to stderr.
func New(stdout, stderr io.Writer, opts Options) Formatter {
	if opts.Mode == "" {
		opts.Mode = ModeTable
	}
	return &formatter{stdout: stdout, stderr: stderr, opts: opts}
}

func (f *formatter) Mode() OutputMode { return f.opts.Mode }
func (f *formatter) Color() bool      { return f.opts.Color }

func (f *formatter) jsonMode() bool { return f.opts.Mode == ModeJSON }

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.jsonMode() {
		return f.PrintJSON(rowObjects(headers, rows))
	}

	tw := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)
	titles := make([]string, len(headers))
	for i, h := range headers {
		titles[i] = f.paint(color.Bold, strings.ToUpper(h))
	}
	fmt.Fprintln(tw, strings.Join(titles, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// rowObjects keys every cell by its header. Missing trailing cells are left out.
func rowObjects(headers []string, rows [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]string, len(headers))
		for i := 0; i < len(headers) && i < len(row); i++ {
			obj[headers[i]] = row[i]
		}
		out = append(out, obj)
	}
	return out
}

// PrintSummary writes a one-line closing message. It is dropped in quiet
// mode and sent to stderr in JSON mode.
func (f *formatter) PrintSummary(message string) error {
	switch {
	case f.opts.Quiet:
		return nil
	case f.jsonMode():
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	default:
		_, err := fmt.Fprintln(f.stdout, f.paint(color.FgGreen, message))
		return err
	}
}
