// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/eventbus"
	"github.com/dotandev/tabletd/internal/journal"
	"github.com/stretchr/testify/require"
)

// fakeLoader turns a ".fake" file into one export whose category is the
// file's content.
type fakeLoader struct{}

func (fakeLoader) Load(_ context.Context, req LoadRequest) (Module, error) {
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(string(data))
	if content == "broken" {
		return nil, fmt.Errorf("cannot load %s", req.Path)
	}
	stem := strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	return StaticModule(component.Export{
		Path:       req.Plugin + "." + stem,
		Categories: []component.Category{component.Category(content)},
		New:        func(component.Args) (any, error) { return content, nil },
	}), nil
}

type recorded struct {
	action journal.Action
	plugin string
	err    error
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (f *fakeRecorder) Record(_ context.Context, action journal.Action, plugin, _ string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recorded{action, plugin, cause})
	return nil
}

func (f *fakeRecorder) actions() []journal.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]journal.Action, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.action
	}
	return out
}

type harness struct {
	info     *config.AppInfo
	registry *Registry
	recorder *fakeRecorder
	changes  int
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{info: config.NewAppInfo(t.TempDir()), recorder: &fakeRecorder{}}
	require.NoError(t, h.info.EnsureDirectories())

	bus := eventbus.New()
	bus.Subscribe(eventbus.TopicPluginsChanged, func(any) { h.changes++ })

	core := component.Export{
		Path:       "tabletd.output.AbsoluteMode",
		Categories: []component.Category{component.CategoryOutputMode},
		New:        func(component.Args) (any, error) { return "core", nil },
	}
	all := append([]Option{
		WithLoader(".fake", fakeLoader{}),
		WithCoreExports(core),
		WithEventBus(bus),
		WithJournal(h.recorder),
	}, opts...)
	h.registry = New(h.info, all...)
	t.Cleanup(func() { h.registry.Close() })
	return h
}

func (h *harness) pluginDir(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(h.info.PluginDirectory, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for file, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
	}
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeZip(t *testing.T, path string, files map[string]string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func readDirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}
