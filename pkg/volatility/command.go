// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

// Output formats accepted by the worker.
const (
	FormatText     = "txt"
	FormatJSON     = "json"
	FormatMarkdown = "md"
)

// Formats lists every supported output format.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatMarkdown}
}

// Invocation pairs a plugin with the full argv that runs it.
type Invocation struct {
	Plugin Plugin
	Args   []string
}

// BaseCommand builds the argv prefix shared by every plugin run of one task.
// Structured formats (json, md) switch vol to its JSON renderer; the markdown
// report is produced separately from the captured output.
func BaseCommand(binary, outputDir, format string) []string {
	cmd := []string{binary, "-o", outputDir}
	if format == FormatJSON || format == FormatMarkdown {
		cmd = append(cmd, "-r", "json")
	}
	return append(cmd, "-f")
}

// PluginCommand appends the image path, plugin name and plugin parameters to base.
// base is never modified.
func PluginCommand(base []string, imagePath string, plugin Plugin) []string {
	args := make([]string, 0, len(base)+2+len(plugin.Params))
	args = append(args, base...)
	args = append(args, imagePath, plugin.Name)
	return append(args, plugin.Params...)
}

// PluginCommands builds one invocation per plugin, preserving order.
func PluginCommands(base []string, imagePath string, plugins []Plugin) []Invocation {
	out := make([]Invocation, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, Invocation{
			Plugin: p,
			Args:   PluginCommand(base, imagePath, p),
		})
	}
	return out
}
