// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/journal"
	"github.com/dotandev/tabletd/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// InstallFromArchive installs a .zip archive or a single module file.
// A plugin already installed under the same name is updated instead.
func (r *Registry) InstallFromArchive(ctx context.Context, path string) (ok bool, err error) {
	ctx, span := telemetry.Start(ctx, "plugin_install_archive", attribute.String("plugin.archive", path))
	defer func() { telemetry.End(span, err) }()

	if _, err := os.Stat(path); err != nil {
		return false, err
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	name := fsName(strings.TrimSuffix(base, filepath.Ext(base)))

	_, isModule := r.loaders[ext]
	if ext != ".zip" && !isModule {
		return false, errors.WrapUnsupportedArchive(ext)
	}

	staging, err := r.stage(name)
	if err != nil {
		return false, err
	}
	defer r.unstage(staging)

	if ext == ".zip" {
		if err := extractZip(path, staging); err != nil {
			return false, err
		}
		if err := flattenSingleDir(staging); err != nil {
			return false, err
		}
	} else if err := copyFile(path, filepath.Join(staging, base)); err != nil {
		return false, err
	}

	return r.installStaged(ctx, staging, name)
}

// InstallFromRemote downloads a plugin and installs it, recording m as
// the plugin's metadata.json. Nothing reaches the plugin root unless the
// download completes.
func (r *Registry) InstallFromRemote(ctx context.Context, m Metadata) (bool, error) {
	d, err := r.Fetch(ctx, m)
	if err != nil {
		return false, err
	}
	return r.InstallDownload(ctx, d)
}

// Download is a fetched plugin waiting in the temporary directory.
type Download struct {
	Metadata Metadata
	staging  string
	r        *Registry
}

// Discard removes the staged files. It is safe after InstallDownload.
func (d *Download) Discard() {
	if d != nil && d.staging != "" {
		d.r.unstage(d.staging)
		d.staging = ""
	}
}

// Fetch downloads m into a staging directory without touching the
// plugin root or the loaded contexts, so it may run concurrently with
// other registry operations.
func (r *Registry) Fetch(ctx context.Context, m Metadata) (d *Download, err error) {
	ctx, span := telemetry.Start(ctx, "plugin_download",
		attribute.String("plugin.name", m.Name), attribute.String("plugin.version", m.PluginVersion))
	defer func() { telemetry.End(span, err) }()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	staging, err := r.stage(m.DirectoryName())
	if err != nil {
		return nil, err
	}
	d = &Download{Metadata: m, staging: staging, r: r}

	if err := r.downloader.Download(ctx, m, staging); err != nil {
		d.Discard()
		r.record(ctx, journal.ActionDownload, m.Name, m.DownloadURL, err)
		return nil, errors.WrapDownloadFailed(m.Name, err)
	}
	if err := ctx.Err(); err != nil {
		d.Discard()
		return nil, errors.WrapDownloadFailed(m.Name, err)
	}
	r.record(ctx, journal.ActionDownload, m.Name, m.DownloadURL, nil)

	if err := WriteMetadata(staging, m); err != nil {
		d.Discard()
		return nil, err
	}
	return d, nil
}

// InstallDownload installs a fetched plugin and discards the staging
// directory.
func (r *Registry) InstallDownload(ctx context.Context, d *Download) (ok bool, err error) {
	ctx, span := telemetry.Start(ctx, "plugin_install_remote", attribute.String("plugin.name", d.Metadata.Name))
	defer func() { telemetry.End(span, err) }()
	defer d.Discard()
	return r.installStaged(ctx, d.staging, d.Metadata.DirectoryName())
}

// Uninstall moves the plugin directory into the trash and drops its
// context.
func (r *Registry) Uninstall(ctx context.Context, c *Context) (bool, error) {
	if err := r.uninstall(ctx, c); err != nil {
		return false, err
	}
	r.notify()
	return true, nil
}

// Update replaces c's content with source, keeping its directory. The
// update is aborted if the current content cannot be moved away.
func (r *Registry) Update(ctx context.Context, c *Context, source string) (bool, error) {
	if c == nil {
		return false, errors.WrapPluginNotFound("")
	}
	target := c.Directory
	if err := r.uninstall(ctx, c); err != nil {
		return false, fmt.Errorf("update of %s aborted: %w", c.FriendlyName, err)
	}
	r.notify()

	nc, err := r.install(ctx, source, target)
	if err != nil {
		return false, err
	}
	r.record(ctx, journal.ActionUpdate, nc.FriendlyName, target, nil)
	r.notify()
	return true, nil
}

func (r *Registry) installStaged(ctx context.Context, staging, name string) (bool, error) {
	if existing := r.Find(name); existing != nil {
		return r.Update(ctx, existing, staging)
	}

	target := filepath.Join(r.Root(), name)
	if _, err := os.Stat(target); err == nil {
		// Present on disk but never loaded; keep it recoverable.
		if err := r.trash(target, name); err != nil {
			return false, err
		}
	}

	c, err := r.install(ctx, staging, target)
	if err != nil {
		return false, err
	}
	r.record(ctx, journal.ActionInstall, c.FriendlyName, target, nil)
	r.notify()
	return true, nil
}

// install moves source to target and loads it.
func (r *Registry) install(ctx context.Context, source, target string) (*Context, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	if err := os.Rename(source, target); err != nil {
		return nil, fmt.Errorf("moving plugin into place: %w", err)
	}

	c, err := r.loadContext(ctx, target)
	if err != nil {
		r.record(ctx, journal.ActionLoadFailed, filepath.Base(target), target, err)
		return nil, err
	}
	if !r.add(c) {
		c.Close()
		return nil, fmt.Errorf("plugin %s is already loaded", c.Name())
	}
	r.log.Info("Installed plugin", "plugin", c.FriendlyName, "path", target)
	return c, nil
}

func (r *Registry) uninstall(ctx context.Context, c *Context) error {
	if c == nil {
		return errors.WrapPluginNotFound("")
	}
	if r.Find(c.Name()) != c {
		return errors.WrapPluginNotFound(c.Directory)
	}

	if err := r.trash(c.Directory, c.FriendlyName); err != nil {
		r.record(ctx, journal.ActionUninstall, c.FriendlyName, c.Directory, err)
		return err
	}
	r.remove(c)
	if err := c.Close(); err != nil {
		r.log.Warn("Failed to release plugin modules", "plugin", c.FriendlyName, "error", err)
	}
	r.record(ctx, journal.ActionUninstall, c.FriendlyName, c.Directory, nil)
	r.log.Info("Uninstalled plugin", "plugin", c.FriendlyName)
	return nil
}

// trash renames dir to <trash>/<name>_<uuid>.
func (r *Registry) trash(dir, name string) error {
	if err := os.MkdirAll(r.info.TrashDirectory, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(r.info.TrashDirectory, fmt.Sprintf("%s_%s", fsName(name), uuid.NewString()))
	if err := os.Rename(dir, dest); err != nil {
		return fmt.Errorf("moving %s to trash: %w", dir, err)
	}
	return nil
}

// stage creates a fresh staging directory under the temporary directory.
func (r *Registry) stage(name string) (string, error) {
	for attempt := 0; ; attempt++ {
		if err := os.MkdirAll(r.info.TemporaryDirectory, 0o755); err != nil {
			return "", err
		}
		dir, err := os.MkdirTemp(r.info.TemporaryDirectory, name+"-")
		// A concurrent unstage may remove the empty temporary directory
		// between the two calls.
		if err != nil && os.IsNotExist(err) && attempt == 0 {
			continue
		}
		return dir, err
	}
}

// unstage removes the staging directory, and the temporary directory too
// once nothing else is staged.
func (r *Registry) unstage(staging string) {
	if err := os.RemoveAll(staging); err != nil {
		r.log.Warn("Failed to remove staging directory", "path", staging, "error", err)
	}
	if entries, err := os.ReadDir(r.info.TemporaryDirectory); err == nil && len(entries) == 0 {
		_ = os.Remove(r.info.TemporaryDirectory)
	}
}
