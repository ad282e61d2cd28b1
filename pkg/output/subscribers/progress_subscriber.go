// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulntor/volworker/pkg/output"
)

const barWidth = 20

var (
	imageStyle = lipgloss.NewStyle().Bold(true)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// HumanSubscriber renders progress, info and error events for a terminal.
type HumanSubscriber struct {
	out          io.Writer
	errOut       io.Writer
	colorEnabled bool
}

// NewHumanSubscriber writes progress and info to out, errors to errOut.
func NewHumanSubscriber(out, errOut io.Writer, colorEnabled bool) *HumanSubscriber {
	return &HumanSubscriber{out: out, errOut: errOut, colorEnabled: colorEnabled}
}

func (s *HumanSubscriber) Name() string {
	return "human-subscriber"
}

func (s *HumanSubscriber) ShouldHandle(event output.OutputEvent) bool {
	switch event.Type {
	case output.EventProgress:
		return event.Progress != nil
	case output.EventInfo, output.EventError:
		return true
	default:
		return false
	}
}

func (s *HumanSubscriber) Handle(event output.OutputEvent) {
	switch event.Type {
	case output.EventProgress:
		fmt.Fprintln(s.out, s.progressLine(*event.Progress))
	case output.EventInfo:
		fmt.Fprintln(s.out, s.style(infoStyle, event.Message))
	case output.EventError:
		fmt.Fprintln(s.errOut, s.style(failStyle, "error: "+event.Message))
	}
}

func (s *HumanSubscriber) progressLine(p output.ProgressData) string {
	done := p.Completed + p.Failed
	filled := 0
	if p.Total > 0 {
		filled = done * barWidth / p.Total
	}
	bar := "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"

	line := fmt.Sprintf("%s %s %d/%d", s.style(imageStyle, p.Image), s.style(barStyle, bar), done, p.Total)
	if p.Failed > 0 {
		line += " " + s.style(failStyle, fmt.Sprintf("(%d failed)", p.Failed))
	}
	return line
}

func (s *HumanSubscriber) style(st lipgloss.Style, text string) string {
	if !s.colorEnabled {
		return text
	}
	return st.Render(text)
}
