// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

// OutputSubscriber renders the events it accepts. Handle runs on the
// emitting goroutine while the stream lock is held.
type OutputSubscriber interface {
	Name() string
	ShouldHandle(event OutputEvent) bool
	Handle(event OutputEvent)
}

// OutputEventStream fans events out to subscribers in registration order.
// Emitters are serialized, so lines from parallel plugins never interleave.
// A subscriber that panics is logged and dropped; the run it reports on
// keeps going.
type OutputEventStream struct {
	mu          sync.Mutex
	subscribers []OutputSubscriber
}

func NewOutputEventStream() *OutputEventStream {
	return &OutputEventStream{}
}

func (s *OutputEventStream) Subscribe(sub OutputSubscriber) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, sub)
	s.mu.Unlock()
}

func (s *OutputEventStream) Emit(event OutputEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var broken []int
	for i, sub := range s.subscribers {
		if !deliver(sub, event) {
			broken = append(broken, i)
		}
	}
	for _, i := range slices.Backward(broken) {
		s.subscribers = slices.Delete(s.subscribers, i, i+1)
	}
}

// deliver reports false when sub panicked.
func deliver(sub OutputSubscriber, event OutputEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "output").Str("subscriber", sub.Name()).
				Interface("panic", r).Msg("output subscriber removed after panic")
			ok = false
		}
	}()
	if sub.ShouldHandle(event) {
		sub.Handle(event)
	}
	return true
}

func (s *OutputEventStream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
