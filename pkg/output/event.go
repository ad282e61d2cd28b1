// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import "time"

// EventType classifies an OutputEvent.
type EventType string

const (
	// EventProgress carries plugin completion counts for one image.
	EventProgress EventType = "progress"
	// EventDiag is a diagnostic line shown with -v and above.
	EventDiag EventType = "diag"
	// EventInfo is a user facing status line.
	EventInfo EventType = "info"
	// EventError reports a failure that did not abort the run.
	EventError EventType = "error"
)

// OutputLevel is the verbosity an event needs before it is shown.
type OutputLevel int

const (
	LevelNormal OutputLevel = iota
	LevelVerbose
	LevelDebug
	LevelTrace
)

// ProgressData is the payload of an EventProgress event.
type ProgressData struct {
	Image     string `json:"image"`
	Total     int    `json:"total_plugins"`
	Completed int    `json:"plugins_completed"`
	Failed    int    `json:"plugins_failed"`
}

// Done reports whether every plugin of the image has finished.
func (p ProgressData) Done() bool {
	return p.Completed+p.Failed >= p.Total
}

// OutputEvent is a single message flowing through an OutputEventStream.
type OutputEvent struct {
	Type      EventType      `json:"type"`
	Level     OutputLevel    `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Progress  *ProgressData  `json:"progress,omitempty"`
}
