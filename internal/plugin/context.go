// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotandev/tabletd/internal/component"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the optional descriptor at the root of a plugin directory.
const ManifestFile = "plugin.yaml"

// Manifest describes a plugin directory.
type Manifest struct {
	Name        string           `yaml:"name"`
	Owner       string           `yaml:"owner,omitempty"`
	Description string           `yaml:"description,omitempty"`
	Version     string           `yaml:"version,omitempty"`
	Modules     []ModuleManifest `yaml:"modules,omitempty"`
}

// ModuleManifest overrides how one module file is exposed.
type ModuleManifest struct {
	File        string      `yaml:"file"`
	Type        string      `yaml:"type,omitempty"`
	DisplayName string      `yaml:"displayName,omitempty"`
	Parameters  []Parameter `yaml:"parameters,omitempty"`
}

// Parameter is a numeric setting passed to a WebAssembly filter.
type Parameter struct {
	Name    string  `yaml:"name"`
	Default float64 `yaml:"default"`
}

// Module returns the entry for file, or nil.
func (m *Manifest) Module(file string) *ModuleManifest {
	if m == nil {
		return nil
	}
	for i := range m.Modules {
		if m.Modules[i].File == file {
			return &m.Modules[i]
		}
	}
	return nil
}

// ReadManifest loads dir/plugin.yaml. A missing manifest returns nil, nil.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}
	return &m, nil
}

// Context is one loaded plugin directory.
type Context struct {
	Directory    string
	FriendlyName string
	Manifest     *Manifest
	Modules      []string
	Exports      []component.Export

	loaded []Module
}

// Name is the directory name, the key contexts are unique by.
func (c *Context) Name() string {
	return filepath.Base(c.Directory)
}

// Close releases loaded modules. Native modules stay mapped until exit.
func (c *Context) Close() error {
	var errs []error
	for _, m := range c.loaded {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.loaded = nil
	return errors.Join(errs...)
}

// Info is the serializable view of a context.
type Info struct {
	Directory    string   `json:"directory"`
	FriendlyName string   `json:"friendlyName"`
	Version      string   `json:"version,omitempty"`
	Modules      []string `json:"modules"`
	Types        []string `json:"types"`
}

func (c *Context) Info() Info {
	info := Info{
		Directory:    c.Directory,
		FriendlyName: c.FriendlyName,
		Modules:      append([]string{}, c.Modules...),
		Types:        make([]string, 0, len(c.Exports)),
	}
	if c.Manifest != nil {
		info.Version = c.Manifest.Version
	}
	for _, e := range c.Exports {
		info.Types = append(info.Types, e.Path)
	}
	return info
}

func friendlyName(dir string, m *Manifest) string {
	if m != nil && strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return filepath.Base(dir)
}

// fsName makes name safe to use as a single path element.
func fsName(name string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", ":", "_")
	name = strings.TrimSpace(r.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "plugin"
	}
	return name
}
