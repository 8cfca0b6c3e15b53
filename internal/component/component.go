// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package component describes the types a plugin exports and the
// capability categories they satisfy.
package component

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dotandev/tabletd/internal/tablet"
)

// Category is a capability a component type satisfies.
type Category string

const (
	CategoryOutputMode Category = "output-mode"
	CategoryFilter     Category = "filter"
	CategoryTool       Category = "tool"
	CategoryParser     Category = "report-parser"
	CategoryBinding    Category = "binding"
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{CategoryOutputMode, CategoryFilter, CategoryTool, CategoryParser, CategoryBinding}
}

// Args carries everything a constructor receives.
type Args struct {
	Settings Values
	// Device is the owning device, nil for tools.
	Device *tablet.InputDevice
}

// Constructor builds one instance of an exported type.
type Constructor func(args Args) (any, error)

// Export is a component type exposed by the core or a plugin.
type Export struct {
	// Path is the fully qualified type name settings refer to.
	Path        string     `json:"path"`
	DisplayName string     `json:"displayName"`
	Description string     `json:"description,omitempty"`
	Categories  []Category `json:"categories"`
	Defaults    Values     `json:"defaults,omitempty"`
	// Plugin is the friendly name of the owning plugin, empty for core types.
	Plugin string      `json:"plugin,omitempty"`
	New    Constructor `json:"-"`
}

// Is reports whether the export declares category c.
func (e Export) Is(c Category) bool {
	return slices.Contains(e.Categories, c)
}

// Name returns DisplayName, falling back to Path.
func (e Export) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Path
}

// Validate checks that the export can be registered.
func (e Export) Validate() error {
	if e.Path == "" {
		return fmt.Errorf("export has no type path")
	}
	if len(e.Categories) == 0 {
		return fmt.Errorf("export %s declares no categories", e.Path)
	}
	if e.New == nil {
		return fmt.Errorf("export %s has no constructor", e.Path)
	}
	return nil
}

// Tool is a long-lived component outside the per-device pipeline.
type Tool interface {
	Initialize() error
	Close() error
}

// Values are serialized settings keyed by property name.
type Values map[string]json.RawMessage

// Bind decodes the values into target, a pointer to a struct whose json
// tags name the properties. Unknown properties are ignored.
func (v Values) Bind(target any) error {
	if len(v) == 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("binding settings: %w", err)
	}
	return nil
}

// Merge returns a copy of v with every property from over applied on top.
func (v Values) Merge(over Values) Values {
	out := make(Values, len(v)+len(over))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range over {
		out[k] = val
	}
	return out
}

// MustValues encodes a plain map into Values. Encoding failures panic, so
// it is only used for literal defaults.
func MustValues(m map[string]any) Values {
	out := make(Values, len(m))
	for k, val := range m {
		data, err := json.Marshal(val)
		if err != nil {
			panic(fmt.Sprintf("component: encoding default %q: %v", k, err))
		}
		out[k] = data
	}
	return out
}
