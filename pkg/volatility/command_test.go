// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseCommand(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{FormatText, []string{"vol", "-o", "/tmp", "-f"}},
		{FormatJSON, []string{"vol", "-o", "/tmp", "-r", "json", "-f"}},
		{FormatMarkdown, []string{"vol", "-o", "/tmp", "-r", "json", "-f"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseCommand("vol", "/tmp", tt.format))
		})
	}
}

func TestPluginCommands(t *testing.T) {
	base := []string{"vol", "-o", "/tmp", "-f"}
	plugins := []Plugin{
		{Name: "windows.info"},
		{Name: "windows.pslist", Params: []string{"--dump"}},
		{Name: "windows.pstree"},
		{Name: "windows.vadyarascan.VadYaraScan", Params: []string{"--yara-file", "rules.yar"}},
	}

	got := PluginCommands(base, "input_file", plugins)
	require.Len(t, got, 4)

	assert.Equal(t, []string{"vol", "-o", "/tmp", "-f", "input_file", "windows.info"}, got[0].Args)
	assert.Equal(t, []string{"vol", "-o", "/tmp", "-f", "input_file", "windows.pslist", "--dump"}, got[1].Args)
	assert.Equal(t, []string{"vol", "-o", "/tmp", "-f", "input_file", "windows.pstree"}, got[2].Args)
	assert.Equal(t, []string{
		"vol", "-o", "/tmp", "-f", "input_file",
		"windows.vadyarascan.VadYaraScan", "--yara-file", "rules.yar",
	}, got[3].Args)

	assert.Equal(t, []string{"vol", "-o", "/tmp", "-f"}, base, "base command must not be modified")
}

func TestPluginCommand_DoesNotAliasBase(t *testing.T) {
	base := make([]string, 4, 16)
	copy(base, []string{"vol", "-o", "/tmp", "-f"})

	a := PluginCommand(base, "a.raw", Plugin{Name: "windows.info"})
	b := PluginCommand(base, "b.raw", Plugin{Name: "windows.pstree"})

	assert.Equal(t, "a.raw", a[4])
	assert.Equal(t, "windows.info", a[5])
	assert.Equal(t, "b.raw", b[4])
}
