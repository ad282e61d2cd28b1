// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulntor/volworker/pkg/output"
)

// diagMarker highlights diagnostics about plugin lifecycle by message prefix.
type diagMarker struct {
	prefix string
	icon   string
	style  lipgloss.Style
}

var (
	diagMarkers = []diagMarker{
		{prefix: "Running ", icon: ">", style: lipgloss.NewStyle().Foreground(lipgloss.Color("39"))},
		{prefix: "Finished ", icon: "✓", style: lipgloss.NewStyle().Foreground(lipgloss.Color("10"))},
		{prefix: "Failed ", icon: "✗", style: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)},
		{prefix: "Collected ", icon: "+", style: lipgloss.NewStyle().Foreground(lipgloss.Color("33"))},
	}
	diagPlainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	diagMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// DiagnosticSubscriber prints EventDiag events up to its verbosity level:
// -v shows LevelVerbose, -vv LevelDebug and -vvv LevelTrace.
type DiagnosticSubscriber struct {
	level        output.OutputLevel
	writer       io.Writer
	colorEnabled bool
}

func NewDiagnosticSubscriber(level output.OutputLevel, writer io.Writer, colorEnabled bool) *DiagnosticSubscriber {
	return &DiagnosticSubscriber{level: level, writer: writer, colorEnabled: colorEnabled}
}

func (s *DiagnosticSubscriber) Name() string { return "diagnostic-subscriber" }

func (s *DiagnosticSubscriber) ShouldHandle(event output.OutputEvent) bool {
	return event.Type == output.EventDiag && event.Level <= s.level
}

func (s *DiagnosticSubscriber) Handle(event output.OutputEvent) {
	line := fmt.Sprintf("%s %s %s", levelLabel(event.Level), event.Timestamp.Format("15:04:05"), event.Message)
	meta := formatMetadata(event.Metadata)

	if !s.colorEnabled {
		if meta != "" {
			line += " " + meta
		}
		fmt.Fprintln(s.writer, line)
		return
	}

	styled := diagPlainStyle.Render(line)
	for _, m := range diagMarkers {
		if strings.HasPrefix(event.Message, m.prefix) {
			styled = m.style.Render("  " + m.icon + " " + event.Message)
			break
		}
	}
	fmt.Fprintln(s.writer, styled)
	if meta != "" {
		fmt.Fprintln(s.writer, diagMetaStyle.Render("    "+meta))
	}
}

func levelLabel(level output.OutputLevel) string {
	switch level {
	case output.LevelVerbose:
		return "[VERBOSE]"
	case output.LevelDebug:
		return "[DEBUG]"
	case output.LevelTrace:
		return "[TRACE]"
	}
	return "[INFO]"
}

// formatMetadata renders metadata as space separated key=value pairs in key order.
func formatMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(pairs, " ")
}
