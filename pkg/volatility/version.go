// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var bannerPattern = regexp.MustCompile(`Volatility 3 Framework (\d+\.\d+\.\d+)`)

// ParseVersion extracts the framework version from vol's banner output.
func ParseVersion(output string) (*semver.Version, error) {
	m := bannerPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("%w: no Volatility 3 banner in output", ErrUnsupportedVersion)
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", m[1], err)
	}
	return v, nil
}

// CheckVersion verifies v against a semver constraint such as ">= 2.0.0".
// An empty constraint accepts any version.
func CheckVersion(v *semver.Version, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, constraint)
	}
	return nil
}

// DetectVersion runs "<binary> -h" and parses the framework version from its banner.
func DetectVersion(ctx context.Context, runner Runner, binary string) (*semver.Version, error) {
	var out bytes.Buffer
	if err := runner.Run(ctx, []string{binary, "-h"}, &out); err != nil {
		return nil, fmt.Errorf("run %s: %w", binary, err)
	}
	return ParseVersion(out.String())
}
