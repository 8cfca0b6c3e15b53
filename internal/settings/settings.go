// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package settings holds the user's driver settings: one profile per tablet
// group plus the global tool set.
package settings

import (
	"github.com/dotandev/tabletd/internal/tablet"
)

// Settings is replaced as a whole, never patched field by field.
type Settings struct {
	Profiles []*Profile           `json:"profiles"`
	Tools    []*PluginSettingStore `json:"tools"`
}

// Profile configures every device of one tablet group.
type Profile struct {
	Tablet          string                `json:"tablet"`
	OutputMode      *PluginSettingStore   `json:"outputMode"`
	Filters         []*PluginSettingStore `json:"filters"`
	BindingSettings *BindingSettings      `json:"bindings"`
}

// BindingSettings maps device inputs to binding components. Thresholds are
// percentages of the maximum pressure.
type BindingSettings struct {
	TipButton                 *PluginSettingStore   `json:"tipButton"`
	TipActivationThreshold    float64               `json:"tipActivationThreshold"`
	EraserButton              *PluginSettingStore   `json:"eraserButton"`
	EraserActivationThreshold float64               `json:"eraserActivationThreshold"`
	PenButtons                []*PluginSettingStore `json:"penButtons"`
	AuxButtons                []*PluginSettingStore `json:"auxButtons"`
}

// Defaults supplies the profile created for a group seen for the first
// time. It must return a fully populated profile.
type Defaults func(cfg *tablet.Configuration) *Profile

// Default returns empty settings; profiles are created as devices appear.
func Default() *Settings {
	return &Settings{Profiles: []*Profile{}, Tools: []*PluginSettingStore{}}
}

// Find returns the profile for a tablet group, or nil.
func (s *Settings) Find(group string) *Profile {
	for _, p := range s.Profiles {
		if p != nil && p.Tablet == group {
			return p
		}
	}
	return nil
}

// Resolve returns the profile for device's group, creating it from
// defaults on first sight. Missing fields of an existing profile are
// filled from defaults. Repeated calls return the same profile.
func (s *Settings) Resolve(device *tablet.InputDevice, defaults Defaults) *Profile {
	group := device.Name()
	if p := s.Find(group); p != nil {
		p.fill(func() *Profile { return defaults(device.Configuration) })
		return p
	}

	p := defaults(device.Configuration)
	if p == nil {
		p = &Profile{}
	}
	p.Tablet = group
	p.fill(func() *Profile { return &Profile{} })
	s.Profiles = append(s.Profiles, p)
	return p
}

func (p *Profile) fill(defaults func() *Profile) {
	var def *Profile
	get := func() *Profile {
		if def == nil {
			def = defaults()
			if def == nil {
				def = &Profile{}
			}
		}
		return def
	}

	if p.OutputMode == nil {
		p.OutputMode = get().OutputMode
	}
	if p.BindingSettings == nil {
		p.BindingSettings = get().BindingSettings
	}
	if p.BindingSettings == nil {
		p.BindingSettings = &BindingSettings{}
	}
	if p.Filters == nil {
		p.Filters = []*PluginSettingStore{}
	}
	if p.BindingSettings.PenButtons == nil {
		p.BindingSettings.PenButtons = []*PluginSettingStore{}
	}
	if p.BindingSettings.AuxButtons == nil {
		p.BindingSettings.AuxButtons = []*PluginSettingStore{}
	}
}
