// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults(calls *int) Defaults {
	return func(cfg *tablet.Configuration) *Profile {
		*calls++
		return &Profile{
			OutputMode: NewStore("tabletd.output.AbsoluteMode", nil),
			BindingSettings: &BindingSettings{
				TipButton:              NewStore("tabletd.bindings.MouseBinding", component.MustValues(map[string]any{"button": "Left"})),
				TipActivationThreshold: 1,
			},
		}
	}
}

func device(name string) *tablet.InputDevice {
	return tablet.NewInputDevice(&tablet.Configuration{Name: name}, nil)
}

func TestResolveCreatesDefaultedProfileOnce(t *testing.T) {
	s := Default()
	calls := 0
	dev := device("Wacom CTL-480")

	first := s.Resolve(dev, testDefaults(&calls))
	second := s.Resolve(dev, testDefaults(&calls))

	require.Same(t, first, second)
	assert.Len(t, s.Profiles, 1)
	assert.Equal(t, "Wacom CTL-480", first.Tablet)
	assert.Equal(t, "tabletd.output.AbsoluteMode", first.OutputMode.Path)
	assert.NotNil(t, first.Filters)
	assert.Empty(t, first.Filters)
	assert.NotNil(t, first.BindingSettings.PenButtons)
	assert.Equal(t, 1, calls)
}

func TestResolveFillsPartialProfile(t *testing.T) {
	s := Default()
	existing := &Profile{Tablet: "XP-Pen Deco 01"}
	s.Profiles = append(s.Profiles, existing)

	calls := 0
	p := s.Resolve(device("XP-Pen Deco 01"), testDefaults(&calls))

	require.Same(t, existing, p)
	require.NotNil(t, p.OutputMode)
	require.NotNil(t, p.BindingSettings)
	assert.NotNil(t, p.BindingSettings.TipButton)
	assert.Len(t, s.Profiles, 1)
}

func TestResolveKeepsUserChoices(t *testing.T) {
	s := Default()
	custom := NewStore("plugin.CustomMode", nil)
	s.Profiles = append(s.Profiles, &Profile{
		Tablet:          "Wacom PTZ-630",
		OutputMode:      custom,
		Filters:         []*PluginSettingStore{NewStore("plugin.Smooth", nil)},
		BindingSettings: &BindingSettings{},
	})

	calls := 0
	p := s.Resolve(device("Wacom PTZ-630"), testDefaults(&calls))
	assert.Same(t, custom, p.OutputMode)
	assert.Len(t, p.Filters, 1)
	assert.Zero(t, calls)
}

func TestStoreValuesAndSet(t *testing.T) {
	store := NewStore("plugin.Filter", component.MustValues(map[string]any{"b": 2, "a": 1}))
	assert.Equal(t, "a", store.Settings[0].Property)
	assert.True(t, store.Enable)

	require.NoError(t, store.Set("a", 5))
	require.NoError(t, store.Set("c", "x"))

	v, ok := store.Get("a")
	require.True(t, ok)
	assert.JSONEq(t, `5`, string(v))
	assert.Len(t, store.Values(), 3)

	clone := store.Clone()
	require.NoError(t, clone.Set("a", 9))
	v, _ = store.Get("a")
	assert.JSONEq(t, `5`, string(v))

	var nilStore *PluginSettingStore
	assert.Nil(t, nilStore.Values())
	assert.Nil(t, nilStore.Clone())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := Default()
	s.Profiles = append(s.Profiles, &Profile{
		Tablet:          "Wacom CTL-480",
		OutputMode:      NewStore("tabletd.output.AbsoluteMode", component.MustValues(map[string]any{"width": 100})),
		Filters:         []*PluginSettingStore{{Path: "plugin.Smooth", Settings: []PluginSetting{}, Enable: false}},
		BindingSettings: &BindingSettings{PenButtons: []*PluginSettingStore{}, AuxButtons: []*PluginSettingStore{}},
	})

	require.NoError(t, Save(path, s))
	loaded, err := Load(path)
	require.NoError(t, err)

	want, _ := json.Marshal(s)
	got, _ := json.Marshal(loaded)
	assert.JSONEq(t, string(want), string(got))
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.True(t, os.IsNotExist(err))

	corrupt := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	_, err = Load(corrupt)
	assert.ErrorIs(t, err, errors.ErrSettingsCorrupt)

	require.NoError(t, os.WriteFile(corrupt, []byte(`{"profiles":[null]}`), 0o644))
	_, err = Load(corrupt)
	assert.ErrorIs(t, err, errors.ErrSettingsCorrupt)
}

func TestRecoverBacksUpAndWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	backupDir := filepath.Join(dir, "Backup")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	backup, err := Recover(path, backupDir, Default())
	require.NoError(t, err)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data))
	assert.Equal(t, backupDir, filepath.Dir(backup))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Profiles)
}

func TestPresetManager(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Presets")
	m := NewPresetManager(dir)
	require.NoError(t, m.Refresh(), "missing directory is not an error")
	assert.Empty(t, m.Names())

	s := Default()
	s.Tools = append(s.Tools, NewStore("plugin.Tool", nil))
	require.NoError(t, m.Save("work", s))
	require.NoError(t, m.Save("art", Default()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	require.NoError(t, m.Refresh())

	assert.Equal(t, []string{"art", "work"}, m.Names())

	p, err := m.Find("work")
	require.NoError(t, err)
	assert.Len(t, p.Settings.Tools, 1)

	_, err = m.Find("missing")
	assert.ErrorIs(t, err, errors.ErrPresetNotFound)

	assert.Error(t, m.Save("../escape", s))
	assert.Error(t, m.Save(" ", s))
}
