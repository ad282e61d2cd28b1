// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bannerRunner struct {
	banner string
	err    error
	argv   []string
}

func (b *bannerRunner) Run(_ context.Context, argv []string, stdout io.Writer) error {
	b.argv = argv
	_, _ = fmt.Fprintln(stdout, b.banner)
	return b.err
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("Volatility 3 Framework 2.7.0\nusage: volatility [-h] [-c CONFIG]")
	require.NoError(t, err)
	assert.Equal(t, "2.7.0", v.String())

	_, err = ParseVersion("Volatility Foundation Volatility Framework 2.6")
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestCheckVersion(t *testing.T) {
	v := semver.MustParse("2.5.2")

	require.NoError(t, CheckVersion(v, ""))
	require.NoError(t, CheckVersion(v, ">= 2.0.0"))
	require.ErrorIs(t, CheckVersion(v, ">= 2.7.0"), ErrUnsupportedVersion)
	require.Error(t, CheckVersion(v, "not a constraint"))
}

func TestDetectVersion(t *testing.T) {
	r := &bannerRunner{banner: "Volatility 3 Framework 2.26.0"}

	v, err := DetectVersion(context.Background(), r, "/usr/local/bin/vol")
	require.NoError(t, err)
	assert.Equal(t, "2.26.0", v.String())
	assert.Equal(t, []string{"/usr/local/bin/vol", "-h"}, r.argv)
}

func TestDetectVersion_RunnerError(t *testing.T) {
	r := &bannerRunner{err: assert.AnError}
	_, err := DetectVersion(context.Background(), r, "vol")
	require.ErrorIs(t, err, assert.AnError)
}
