// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidAndEmptyDirectories(t *testing.T) {
	h := newHarness(t)
	h.pluginDir(t, "Valid", map[string]string{"Mode.fake": "output-mode", "readme.txt": "ignored"})
	h.pluginDir(t, "Empty", nil)
	writeFile(t, filepath.Join(h.info.PluginDirectory, "stray.fake"), "filter")

	require.NoError(t, h.registry.Load(context.Background()))

	contexts := h.registry.Contexts()
	require.Len(t, contexts, 2)
	assert.Equal(t, "Empty", contexts[0].Name())
	assert.Empty(t, contexts[0].Exports)
	assert.Equal(t, "Valid", contexts[1].Name())
	assert.Equal(t, []string{"Mode.fake"}, contexts[1].Modules)

	e, ok := h.registry.Lookup("Valid.Mode")
	require.True(t, ok)
	assert.True(t, e.Is(component.CategoryOutputMode))
	assert.Equal(t, "Valid", e.Plugin)

	_, ok = h.registry.Lookup("stray.stray")
	assert.False(t, ok)
	assert.Len(t, h.registry.Exports(), 2, "core plus one plugin type")
	assert.Equal(t, 1, h.changes, "one notification per scan")
}

func TestLoadIsIdempotentPerDirectory(t *testing.T) {
	h := newHarness(t)
	h.pluginDir(t, "Valid", map[string]string{"Mode.fake": "output-mode"})
	ctx := context.Background()

	require.NoError(t, h.registry.Load(ctx))
	first := h.registry.Find("Valid")
	require.NoError(t, h.registry.Load(ctx))

	assert.Len(t, h.registry.Contexts(), 1)
	assert.Same(t, first, h.registry.Find("Valid"))
}

func TestLoadSkipsBrokenModules(t *testing.T) {
	h := newHarness(t)
	h.pluginDir(t, "Mixed", map[string]string{"Good.fake": "filter", "Bad.fake": "broken"})

	require.NoError(t, h.registry.Load(context.Background()))

	c := h.registry.Find("Mixed")
	require.NotNil(t, c)
	assert.Equal(t, []string{"Good.fake"}, c.Modules)
	require.Len(t, c.Exports, 1)
	assert.Equal(t, "Mixed.Good", c.Exports[0].Path)
}

func TestLoadBadManifestIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.pluginDir(t, "BadManifest", map[string]string{ManifestFile: "name: [oops", "A.fake": "filter"})
	h.pluginDir(t, "Good", map[string]string{"A.fake": "filter"})

	require.NoError(t, h.registry.Load(context.Background()))

	assert.Nil(t, h.registry.Find("BadManifest"))
	assert.NotNil(t, h.registry.Find("Good"))
	assert.Contains(t, h.recorder.actions(), journal.ActionLoadFailed)
}

func TestManifestFriendlyName(t *testing.T) {
	h := newHarness(t)
	h.pluginDir(t, "fancy", map[string]string{ManifestFile: "name: Fancy Pack\nversion: 1.2.0\n", "Smooth.fake": "filter"})

	require.NoError(t, h.registry.Load(context.Background()))

	c := h.registry.Find("fancy")
	require.NotNil(t, c)
	assert.Equal(t, "Fancy Pack", c.FriendlyName)
	assert.Equal(t, "1.2.0", c.Info().Version)
	assert.Equal(t, []string{"Fancy Pack.Smooth"}, c.Info().Types)
}

func TestCoreExportsShadowPlugins(t *testing.T) {
	h := newHarness(t)
	h.pluginDir(t, "tabletd.output", map[string]string{"AbsoluteMode.fake": "filter"})
	require.NoError(t, h.registry.Load(context.Background()))

	e, ok := h.registry.Lookup("tabletd.output.AbsoluteMode")
	require.True(t, ok)
	assert.Empty(t, e.Plugin)
	assert.True(t, e.Is(component.CategoryOutputMode))
}

func TestCleanPurgesTrashAndTemp(t *testing.T) {
	h := newHarness(t)
	writeFile(t, filepath.Join(h.info.TrashDirectory, "Old_1234", "a.fake"), "filter")
	writeFile(t, filepath.Join(h.info.TemporaryDirectory, "partial", "b.fake"), "filter")
	writeFile(t, filepath.Join(h.info.PluginDirectory, "stray.txt"), "x")
	h.pluginDir(t, "Keep", map[string]string{"A.fake": "filter"})

	assert.NotPanics(t, h.registry.Clean)

	assert.NoDirExists(t, h.info.TrashDirectory)
	assert.NoDirExists(t, h.info.TemporaryDirectory)
	assert.DirExists(t, filepath.Join(h.info.PluginDirectory, "Keep"))
	assert.FileExists(t, filepath.Join(h.info.PluginDirectory, "stray.txt"), "stray files are only reported")
}

func TestConcurrentReads(t *testing.T) {
	h := newHarness(t)
	h.pluginDir(t, "Valid", map[string]string{"Mode.fake": "output-mode"})
	require.NoError(t, h.registry.Load(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.registry.Exports()
			h.registry.Lookup("Valid.Mode")
			h.registry.Contexts()
		}()
	}
	wg.Wait()
}

func TestCheckUpdates(t *testing.T) {
	h := newHarness(t, WithDriverVersion("0.6.4"))
	dir := h.pluginDir(t, "Smoothing", map[string]string{"S.fake": "filter"})
	require.NoError(t, WriteMetadata(dir, Metadata{Name: "Smoothing", Owner: "ink", PluginVersion: "1.0.0"}))
	h.pluginDir(t, "Local", map[string]string{"L.fake": "filter"})
	require.NoError(t, h.registry.Load(context.Background()))

	updates := h.registry.CheckUpdates([]Metadata{
		{Name: "Smoothing", Owner: "ink", PluginVersion: "1.1.0", SupportedDriverVersion: "0.6.0"},
		{Name: "Smoothing", Owner: "ink", PluginVersion: "2.0.0", SupportedDriverVersion: "0.7.0"},
		{Name: "Smoothing", Owner: "other", PluginVersion: "9.0.0"},
		{Name: "Local", PluginVersion: "5.0.0"},
	})

	require.Len(t, updates, 1)
	assert.Equal(t, "Smoothing", updates[0].Directory)
	assert.Equal(t, "1.1.0", updates[0].Available.PluginVersion)
}
