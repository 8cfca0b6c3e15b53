// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/plugin"
	"github.com/dotandev/tabletd/internal/settings"
)

// LoadPlugins loads plugin directories added since the last scan.
func (d *Daemon) LoadPlugins(ctx context.Context) error {
	return d.submit(ctx, "load-plugins", func(ctx context.Context) error {
		return d.registry.Load(ctx)
	})
}

// InstallPlugin installs a .zip archive or module file and reapplies the
// active settings so new types resolve.
func (d *Daemon) InstallPlugin(ctx context.Context, path string) (bool, error) {
	return query(d, ctx, "install-plugin", func(ctx context.Context) (bool, error) {
		return d.withPipelinesReleased(ctx, func() (bool, error) {
			return d.registry.InstallFromArchive(ctx, path)
		})
	})
}

// UninstallPlugin removes the plugin installed in directory dir. Only the
// final path element is used.
func (d *Daemon) UninstallPlugin(ctx context.Context, dir string) (bool, error) {
	return query(d, ctx, "uninstall-plugin", func(ctx context.Context) (bool, error) {
		c := d.registry.Find(filepath.Base(dir))
		if c == nil {
			return false, errors.WrapPluginNotFound(dir)
		}
		return d.withPipelinesReleased(ctx, func() (bool, error) {
			return d.registry.Uninstall(ctx, c)
		})
	})
}

// DownloadPlugin fetches m and installs it. The download runs on the
// caller's goroutine; only the install step is serialized. Whichever of
// the install task and the caller claims the download first disposes of it.
func (d *Daemon) DownloadPlugin(ctx context.Context, m plugin.Metadata) (bool, error) {
	dl, err := d.registry.Fetch(ctx, m)
	if err != nil {
		return false, err
	}

	var mu sync.Mutex
	claimed := false
	claim := func() bool {
		mu.Lock()
		defer mu.Unlock()
		if claimed {
			return false
		}
		claimed = true
		return true
	}

	ok, err := query(d, ctx, "install-download", func(ctx context.Context) (bool, error) {
		if !claim() {
			return false, context.Canceled
		}
		return d.withPipelinesReleased(ctx, func() (bool, error) {
			return d.registry.InstallDownload(ctx, dl)
		})
	})
	if claim() {
		dl.Discard()
	}
	return ok, err
}

// DownloadPluginByName resolves the newest compatible release of name in
// the catalog and downloads it.
func (d *Daemon) DownloadPluginByName(ctx context.Context, name string) (bool, error) {
	if d.catalog == nil {
		return false, errors.WrapConfigError("plugin catalog is not configured", nil)
	}
	m, err := d.catalog.Find(ctx, name)
	if err != nil {
		return false, err
	}
	return d.DownloadPlugin(ctx, m)
}

// withPipelinesReleased runs a registry change with every pipeline
// detached, then rebuilds them from the active settings.
func (d *Daemon) withPipelinesReleased(ctx context.Context, fn func() (bool, error)) (bool, error) {
	for _, dev := range d.devices() {
		if err := dev.Detach(); err != nil {
			d.log.Warn("Failed to release pipeline", "tablet", dev.Name(), "error", err)
		}
	}
	if err := d.stopTools(); err != nil {
		d.log.Warn("Failed to stop tools", "error", err)
	}
	ok, err := fn()
	d.apply(ctx, d.settings)
	return ok, err
}

// Plugins describes the loaded plugin contexts.
func (d *Daemon) Plugins() []plugin.Info {
	contexts := d.registry.Contexts()
	out := make([]plugin.Info, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, c.Info())
	}
	return out
}

// MatchingTypes lists the component types providing category.
func (d *Daemon) MatchingTypes(category component.Category) []component.Export {
	return d.factory.MatchingTypes(category)
}

// DefaultSettings returns a store with the defaults of the type at path.
func (d *Daemon) DefaultSettings(path string) (*settings.PluginSettingStore, error) {
	return d.factory.DefaultSettings(path)
}

// CheckPluginUpdates compares the installed plugins with the catalog.
func (d *Daemon) CheckPluginUpdates(ctx context.Context) ([]plugin.Update, error) {
	if d.catalog == nil {
		return nil, errors.WrapConfigError("plugin catalog is not configured", nil)
	}
	available, err := d.catalog.Compatible(ctx)
	if err != nil {
		return nil, err
	}
	return d.registry.CheckUpdates(available), nil
}
