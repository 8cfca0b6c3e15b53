// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dotandev/tabletd/internal/component"
)

// PluginSetting is one serialized property of a component.
type PluginSetting struct {
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// PluginSettingStore names a component type and the settings to construct
// it with.
type PluginSettingStore struct {
	Path     string          `json:"path"`
	Settings []PluginSetting `json:"settings"`
	Enable   bool            `json:"enable"`
}

// NewStore returns an enabled store for path. Properties are sorted so the
// serialized form is stable.
func NewStore(path string, values component.Values) *PluginSettingStore {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := &PluginSettingStore{Path: path, Settings: make([]PluginSetting, 0, len(keys)), Enable: true}
	for _, k := range keys {
		s.Settings = append(s.Settings, PluginSetting{Property: k, Value: values[k]})
	}
	return s
}

// Values returns the settings keyed by property. Later duplicates win.
func (s *PluginSettingStore) Values() component.Values {
	if s == nil {
		return nil
	}
	out := make(component.Values, len(s.Settings))
	for _, setting := range s.Settings {
		out[setting.Property] = setting.Value
	}
	return out
}

// Get returns the raw value of property.
func (s *PluginSettingStore) Get(property string) (json.RawMessage, bool) {
	if s == nil {
		return nil, false
	}
	for i := len(s.Settings) - 1; i >= 0; i-- {
		if s.Settings[i].Property == property {
			return s.Settings[i].Value, true
		}
	}
	return nil, false
}

// Set encodes v and stores it under property.
func (s *PluginSettingStore) Set(property string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", property, err)
	}
	for i := range s.Settings {
		if s.Settings[i].Property == property {
			s.Settings[i].Value = data
			return nil
		}
	}
	s.Settings = append(s.Settings, PluginSetting{Property: property, Value: data})
	return nil
}

// Clone returns a deep copy.
func (s *PluginSettingStore) Clone() *PluginSettingStore {
	if s == nil {
		return nil
	}
	out := &PluginSettingStore{Path: s.Path, Enable: s.Enable, Settings: make([]PluginSetting, len(s.Settings))}
	for i, setting := range s.Settings {
		out.Settings[i] = PluginSetting{Property: setting.Property, Value: bytes.Clone(setting.Value)}
	}
	return out
}
