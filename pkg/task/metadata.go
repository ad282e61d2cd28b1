// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package task

import "github.com/vulntor/volworker/pkg/volatility"

// Task registration identifiers.
const (
	Name        = "volworker.tasks.volatility"
	DisplayName = "Volatility"
	Description = "Run a set of Volatility 3 plugins against memory images"
)

// Data types attached to produced files.
const (
	DataTypeReport   = "worker:volatility:report"
	DataTypePlugin   = "worker:volatility:plugin"
	DataTypeArtifact = "worker:volatility:artifact"
	DataTypeYara     = "worker:volatility:yara"
)

// Option keys accepted in a task config map.
const (
	OptionYaraRules    = "yara_rules"
	OptionOSGroup      = "os_group"
	OptionOutputFormat = "output_format"
)

// Field types understood by task front-ends.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
)

// ConfigField describes one user-facing task option.
type ConfigField struct {
	Name        string `json:"name" yaml:"name"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required" yaml:"required"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
}

// Metadata is what the worker advertises when it registers.
type Metadata struct {
	Name        string        `json:"task_name" yaml:"task_name"`
	DisplayName string        `json:"display_name" yaml:"display_name"`
	Description string        `json:"description" yaml:"description"`
	Config      []ConfigField `json:"task_config" yaml:"task_config"`
}

// DefaultMetadata returns the registration metadata of the task.
func DefaultMetadata() Metadata {
	return Metadata{
		Name:        Name,
		DisplayName: DisplayName,
		Description: Description,
		Config: []ConfigField{
			{
				Name:        OptionYaraRules,
				Label:       "Yara rules",
				Description: "Yara rules to scan process memory with",
				Type:        FieldTextarea,
			},
			{
				Name:        OptionOSGroup,
				Label:       "OS group",
				Description: "Plugin group to run: win, lin or macos",
				Type:        FieldText,
				Required:    true,
				Default:     string(volatility.OSGroupWindows),
			},
			{
				Name:        OptionOutputFormat,
				Label:       "Output format",
				Description: "Plugin output format: txt, json or md",
				Type:        FieldText,
				Required:    true,
				Default:     volatility.FormatText,
			},
		},
	}
}
