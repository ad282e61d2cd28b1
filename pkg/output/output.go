// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import "time"

// Output is the facade commands use to report what a run is doing.
type Output interface {
	Progress(p ProgressData)
	Info(msg string, metadata map[string]any)
	Error(msg string, metadata map[string]any)
	Diag(level OutputLevel, msg string, metadata map[string]any)
}

// DefaultOutput turns Output calls into stream events.
type DefaultOutput struct {
	stream *OutputEventStream
	now    func() time.Time
}

// NewDefaultOutput wraps a stream.
func NewDefaultOutput(stream *OutputEventStream) *DefaultOutput {
	return &DefaultOutput{stream: stream, now: time.Now}
}

func (o *DefaultOutput) Progress(p ProgressData) {
	o.stream.Emit(OutputEvent{
		Type:      EventProgress,
		Timestamp: o.now(),
		Progress:  &p,
	})
}

func (o *DefaultOutput) Info(msg string, metadata map[string]any) {
	o.emit(EventInfo, LevelNormal, msg, metadata)
}

func (o *DefaultOutput) Error(msg string, metadata map[string]any) {
	o.emit(EventError, LevelNormal, msg, metadata)
}

func (o *DefaultOutput) Diag(level OutputLevel, msg string, metadata map[string]any) {
	o.emit(EventDiag, level, msg, metadata)
}

func (o *DefaultOutput) emit(typ EventType, level OutputLevel, msg string, metadata map[string]any) {
	o.stream.Emit(OutputEvent{
		Type:      typ,
		Level:     level,
		Timestamp: o.now(),
		Message:   msg,
		Metadata:  metadata,
	})
}
