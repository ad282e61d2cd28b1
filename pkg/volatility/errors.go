// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import "errors"

var (
	// ErrUnknownOSGroup is returned when no plugins are registered for an OS group.
	ErrUnknownOSGroup = errors.New("no plugins found for OS group")

	// ErrInvalidCatalog indicates a malformed plugin catalog definition.
	ErrInvalidCatalog = errors.New("invalid plugin catalog")

	// ErrTimeout is returned when a plugin exceeds its execution timeout.
	ErrTimeout = errors.New("plugin execution timed out")

	// ErrUnsupportedVersion indicates the vol binary does not satisfy the version constraint.
	ErrUnsupportedVersion = errors.New("unsupported volatility version")
)
