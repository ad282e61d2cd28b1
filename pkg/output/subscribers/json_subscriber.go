// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"encoding/json"
	"io"

	"github.com/vulntor/volworker/pkg/output"
)

// JSONSubscriber writes every non-diagnostic event as one JSON object per line.
type JSONSubscriber struct {
	enc *json.Encoder
}

// NewJSONSubscriber creates a JSON lines subscriber.
func NewJSONSubscriber(w io.Writer) *JSONSubscriber {
	return &JSONSubscriber{enc: json.NewEncoder(w)}
}

func (s *JSONSubscriber) Name() string {
	return "json-subscriber"
}

func (s *JSONSubscriber) ShouldHandle(event output.OutputEvent) bool {
	return event.Type != output.EventDiag
}

func (s *JSONSubscriber) Handle(event output.OutputEvent) {
	_ = s.enc.Encode(event)
}
