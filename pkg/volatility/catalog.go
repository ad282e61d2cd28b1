// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package volatility

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// OSGroup is a coarse platform category selecting which plugins apply to an image.
type OSGroup string

const (
	OSGroupWindows OSGroup = "win"
	OSGroupLinux   OSGroup = "lin"
	OSGroupMacOS   OSGroup = "macos"
)

// Plugin is a single Volatility 3 plugin invocation.
type Plugin struct {
	Name   string   `yaml:"name" json:"name"`
	Params []string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Group lists the plugins run for one OS group. YaraPlugin names the plugin
// that receives user supplied Yara rules; empty means the group cannot scan.
type Group struct {
	Plugins    []Plugin `yaml:"plugins"`
	YaraPlugin string   `yaml:"yara_plugin,omitempty"`
}

// Catalog maps OS groups to their plugin sets.
type Catalog map[OSGroup]Group

// YaraFileParam is the parameter used to hand a rules file to a Yara scan plugin.
const YaraFileParam = "--yara-file"

var (
	pluginNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)
	groupNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,31}$`)
)

// DefaultCatalog returns the built-in plugin catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		OSGroupWindows: {
			Plugins: []Plugin{
				{Name: "windows.info"},
				{Name: "windows.pslist", Params: []string{"--dump"}},
				{Name: "windows.pstree"},
			},
			YaraPlugin: "windows.vadyarascan.VadYaraScan",
		},
		OSGroupLinux: {
			Plugins: []Plugin{
				{Name: "linux.pslist"},
				{Name: "linux.pstree"},
				{Name: "linux.bash"},
			},
			YaraPlugin: "linux.vmayarascan.VmaYaraScan",
		},
		OSGroupMacOS: {
			Plugins: []Plugin{
				{Name: "mac.pslist"},
				{Name: "mac.pstree"},
				{Name: "mac.bash"},
			},
		},
	}
}

type catalogFile struct {
	Groups map[string]Group `yaml:"groups"`
}

// LoadCatalog reads a YAML catalog and overlays its groups on the default catalog.
// An empty path returns the default catalog unchanged.
//
// File format:
//
//	groups:
//	  win:
//	    yara_plugin: windows.vadyarascan.VadYaraScan
//	    plugins:
//	      - name: windows.pslist
//	        params: ["--dump"]
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidCatalog, path, err)
	}
	if len(file.Groups) == 0 {
		return nil, fmt.Errorf("%w: %s defines no groups", ErrInvalidCatalog, path)
	}

	for name, group := range file.Groups {
		catalog[OSGroup(name)] = group
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Validate checks group and plugin names.
func (c Catalog) Validate() error {
	for name, group := range c {
		if !groupNamePattern.MatchString(string(name)) {
			return fmt.Errorf("%w: invalid group name %q", ErrInvalidCatalog, name)
		}
		if len(group.Plugins) == 0 {
			return fmt.Errorf("%w: group %q has no plugins", ErrInvalidCatalog, name)
		}
		seen := make(map[string]struct{}, len(group.Plugins))
		for _, p := range group.Plugins {
			if !pluginNamePattern.MatchString(p.Name) {
				return fmt.Errorf("%w: group %q: invalid plugin name %q", ErrInvalidCatalog, name, p.Name)
			}
			if _, dup := seen[p.Name]; dup {
				return fmt.Errorf("%w: group %q: duplicate plugin %q", ErrInvalidCatalog, name, p.Name)
			}
			seen[p.Name] = struct{}{}
		}
		if group.YaraPlugin != "" && !pluginNamePattern.MatchString(group.YaraPlugin) {
			return fmt.Errorf("%w: group %q: invalid yara plugin %q", ErrInvalidCatalog, name, group.YaraPlugin)
		}
	}
	return nil
}

// Groups returns the catalog's OS group names in sorted order.
func (c Catalog) Groups() []OSGroup {
	groups := make([]OSGroup, 0, len(c))
	for g := range c {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	return groups
}

// Has reports whether the catalog knows the group.
func (c Catalog) Has(group OSGroup) bool {
	_, ok := c[group]
	return ok
}

// SupportsYara reports whether the group has a Yara scan plugin.
func (c Catalog) SupportsYara(group OSGroup) bool {
	g, ok := c[group]
	return ok && g.YaraPlugin != ""
}

// Select returns the plugins to run for group. When yaraFile is non-empty and
// the group supports Yara scanning, the scan plugin is appended with the rules
// file as parameter. The returned slice is independent of the catalog.
func (c Catalog) Select(group OSGroup, yaraFile string) ([]Plugin, error) {
	g, ok := c[group]
	if !ok || len(g.Plugins) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOSGroup, group)
	}

	plugins := make([]Plugin, 0, len(g.Plugins)+1)
	for _, p := range g.Plugins {
		plugins = append(plugins, Plugin{
			Name:   p.Name,
			Params: append([]string(nil), p.Params...),
		})
	}

	if yaraFile != "" && g.YaraPlugin != "" {
		plugins = append(plugins, Plugin{
			Name:   g.YaraPlugin,
			Params: []string{YaraFileParam, yaraFile},
		})
	}
	return plugins, nil
}
