// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package report builds the markdown summary written next to plugin output.
package report

import (
	"fmt"
	"strings"
)

// Priority ranks how urgently a report should be looked at.
type Priority int

const (
	PriorityCritical Priority = 10
	PriorityHigh     Priority = 20
	PriorityMedium   Priority = 40
	PriorityLow      Priority = 60
	PriorityInfo     Priority = 80
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	case PriorityInfo:
		return "INFO"
	default:
		return fmt.Sprintf("PRIORITY(%d)", int(p))
	}
}

// Report is an ordered list of sections under a title.
type Report struct {
	Title    string
	Priority Priority
	Summary  string
	sections []*Section
}

// New creates a Report with informational priority.
func New(title string) *Report {
	return &Report{Title: title, Priority: PriorityInfo}
}

// AddSection appends an empty section and returns it.
func (r *Report) AddSection() *Section {
	s := &Section{}
	r.sections = append(r.sections, s)
	return s
}

// Sections returns the sections in insertion order.
func (r *Report) Sections() []*Section {
	return r.sections
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	if r.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", r.Title)
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Summary)
	}
	for _, s := range r.sections {
		s.render(&b)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

type blockKind int

const (
	blockHeader blockKind = iota
	blockParagraph
	blockBullet
	blockCode
)

type block struct {
	kind  blockKind
	text  string
	level int
}

// Section groups headers, paragraphs, bullets and code blocks.
type Section struct {
	blocks []block
}

// AddHeader adds a header. level is clamped to 1..6.
func (s *Section) AddHeader(text string, level int) {
	level = min(max(level, 1), 6)
	s.blocks = append(s.blocks, block{kind: blockHeader, text: text, level: level})
}

// AddParagraph adds a paragraph.
func (s *Section) AddParagraph(text string) {
	s.blocks = append(s.blocks, block{kind: blockParagraph, text: text})
}

// AddBullet adds a bullet item. Consecutive bullets render as one list.
func (s *Section) AddBullet(text string) {
	s.blocks = append(s.blocks, block{kind: blockBullet, text: text})
}

// AddCodeBlock adds a fenced code block.
func (s *Section) AddCodeBlock(text string) {
	s.blocks = append(s.blocks, block{kind: blockCode, text: text})
}

func (s *Section) render(b *strings.Builder) {
	for i, blk := range s.blocks {
		switch blk.kind {
		case blockHeader:
			fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", blk.level), blk.text)
		case blockParagraph:
			fmt.Fprintf(b, "%s\n\n", blk.text)
		case blockBullet:
			fmt.Fprintf(b, "* %s\n", blk.text)
			if i+1 == len(s.blocks) || s.blocks[i+1].kind != blockBullet {
				b.WriteString("\n")
			}
		case blockCode:
			fence := codeFence(blk.text)
			body := strings.TrimRight(blk.text, "\n")
			fmt.Fprintf(b, "%s\n%s\n%s\n\n", fence, body, fence)
		}
	}
}

// codeFence returns a backtick fence longer than any backtick run in text.
func codeFence(text string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}
