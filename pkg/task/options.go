// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package task

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/vulntor/volworker/pkg/volatility"
)

var validate = validator.New()

// Options are the parsed user options of one task run.
type Options struct {
	YaraRules    string             `json:"yara_rules,omitempty"`
	OSGroup      volatility.OSGroup `json:"os_group" validate:"required"`
	OutputFormat string             `json:"output_format" validate:"required,oneof=txt json md"`
}

// DefaultOptions returns the registered option defaults.
func DefaultOptions() Options {
	return Options{
		OSGroup:      volatility.OSGroupWindows,
		OutputFormat: volatility.FormatText,
	}
}

// ParseOptions reads raw task config values, falling back to defaults for
// missing or empty entries. Empty default fields fall back to DefaultOptions.
func ParseOptions(raw map[string]any, defaults Options, catalog volatility.Catalog) (Options, error) {
	base := DefaultOptions()
	if defaults.OSGroup == "" {
		defaults.OSGroup = base.OSGroup
	}
	if defaults.OutputFormat == "" {
		defaults.OutputFormat = base.OutputFormat
	}

	yara, err := stringOption(raw, OptionYaraRules)
	if err != nil {
		return Options{}, err
	}
	group, err := stringOption(raw, OptionOSGroup)
	if err != nil {
		return Options{}, err
	}
	format, err := stringOption(raw, OptionOutputFormat)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		YaraRules:    yara,
		OSGroup:      volatility.OSGroup(strings.ToLower(strings.TrimSpace(group))),
		OutputFormat: strings.ToLower(strings.TrimSpace(format)),
	}
	if strings.TrimSpace(opts.YaraRules) == "" {
		opts.YaraRules = defaults.YaraRules
	}
	if opts.OSGroup == "" {
		opts.OSGroup = defaults.OSGroup
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = defaults.OutputFormat
	}

	if err := validate.Struct(opts); err != nil {
		return Options{}, WithErrorCode(fmt.Errorf("%w: %v", ErrInvalidConfig, err), CodeInvalidConfig)
	}
	if !catalog.Has(opts.OSGroup) {
		return Options{}, WithErrorCode(fmt.Errorf("%w: %q", ErrUnknownOSGroup, opts.OSGroup), CodeUnknownGroup)
	}
	return opts, nil
}

func stringOption(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", WithErrorCode(fmt.Errorf("%w: option %s: %v", ErrInvalidConfig, key, err), CodeInvalidConfig)
	}
	return s, nil
}
