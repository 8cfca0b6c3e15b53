// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/eventbus"
	"github.com/dotandev/tabletd/internal/journal"
	"github.com/dotandev/tabletd/internal/logger"
)

// Recorder receives plugin lifecycle events.
type Recorder interface {
	Record(ctx context.Context, action journal.Action, plugin, detail string, cause error) error
}

// Registry owns the loaded plugin contexts. Mutating operations are
// expected to be serialized by the caller; reads may run concurrently.
type Registry struct {
	info          *config.AppInfo
	loaders       map[string]ModuleLoader
	core          []component.Export
	bus           *eventbus.EventBus
	journal       Recorder
	downloader    Downloader
	driverVersion string
	log           *slog.Logger

	mu       sync.RWMutex
	contexts []*Context
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader handles module files with extension ext (including the dot).
func WithLoader(ext string, l ModuleLoader) Option {
	return func(r *Registry) { r.loaders[strings.ToLower(ext)] = l }
}

// WithCoreExports registers component types that are always available.
func WithCoreExports(exports ...component.Export) Option {
	return func(r *Registry) { r.core = append(r.core, exports...) }
}

func WithEventBus(bus *eventbus.EventBus) Option {
	return func(r *Registry) { r.bus = bus }
}

func WithJournal(j Recorder) Option {
	return func(r *Registry) { r.journal = j }
}

func WithDownloader(d Downloader) Option {
	return func(r *Registry) { r.downloader = d }
}

// WithDriverVersion sets the version plugin compatibility is checked
// against.
func WithDriverVersion(v string) Option {
	return func(r *Registry) { r.driverVersion = v }
}

// New returns a registry over the directories in info. Native and
// WebAssembly loaders are registered by default.
func New(info *config.AppInfo, opts ...Option) *Registry {
	r := &Registry{
		info: info,
		loaders: map[string]ModuleLoader{
			".so":   NativeLoader{},
			".wasm": WasmLoader{},
		},
		downloader: &HTTPDownloader{UserAgent: "tabletd"},
		log:        logger.For("Plugin"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root is the plugin root directory.
func (r *Registry) Root() string { return r.info.PluginDirectory }

// Contexts returns the loaded contexts ordered by directory name.
func (r *Registry) Contexts() []*Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Context, len(r.contexts))
	copy(out, r.contexts)
	return out
}

// Find returns the context loaded from the named plugin directory.
func (r *Registry) Find(dir string) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(filepath.Base(dir))
}

func (r *Registry) findLocked(name string) *Context {
	for _, c := range r.contexts {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Exports lists core types followed by plugin types.
func (r *Registry) Exports() []component.Export {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]component.Export{}, r.core...)
	for _, c := range r.contexts {
		out = append(out, c.Exports...)
	}
	return out
}

// Lookup resolves a type path. Core types shadow plugin types.
func (r *Registry) Lookup(path string) (component.Export, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.core {
		if e.Path == path {
			return e, true
		}
	}
	for _, c := range r.contexts {
		for _, e := range c.Exports {
			if e.Path == path {
				return e, true
			}
		}
	}
	return component.Export{}, false
}

// Load creates a context for every plugin directory not yet loaded. A
// directory that fails to load is logged and skipped.
func (r *Registry) Load(ctx context.Context) error {
	root := r.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		r.log.Error("Failed to create plugin directory", "path", root, "error", err)
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		r.log.Error("Failed to scan plugin directory", "path", root, "error", err)
		return nil
	}

	for _, entry := range entries {
		if !entry.IsDir() || r.Find(entry.Name()) != nil {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		c, err := r.loadContext(ctx, dir)
		if err != nil {
			r.log.Error("Failed to load plugin", "path", dir, "error", err)
			r.record(ctx, journal.ActionLoadFailed, entry.Name(), dir, err)
			continue
		}
		r.add(c)
		r.record(ctx, journal.ActionLoad, c.FriendlyName, dir, nil)
	}

	r.notify()
	return nil
}

func (r *Registry) loadContext(ctx context.Context, dir string) (*Context, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	c := &Context{Directory: dir, FriendlyName: friendlyName(dir, manifest), Manifest: manifest}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		loader, ok := r.loaders[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		mod, err := loader.Load(ctx, LoadRequest{
			Path:     path,
			Plugin:   c.FriendlyName,
			Manifest: manifest.Module(entry.Name()),
		})
		if err != nil {
			r.log.Warn("Failed to load module", "plugin", c.FriendlyName, "module", entry.Name(), "error", err)
			continue
		}

		c.loaded = append(c.loaded, mod)
		c.Modules = append(c.Modules, entry.Name())
		for _, e := range mod.Exports() {
			if err := e.Validate(); err != nil {
				r.log.Warn("Skipping invalid export", "plugin", c.FriendlyName, "error", err)
				continue
			}
			if seen[e.Path] {
				r.log.Warn("Duplicate export", "plugin", c.FriendlyName, "type", e.Path)
				continue
			}
			seen[e.Path] = true
			e.Plugin = c.FriendlyName
			c.Exports = append(c.Exports, e)
		}
	}
	return c, nil
}

func (r *Registry) add(c *Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(c.Name()) != nil {
		return false
	}
	r.contexts = append(r.contexts, c)
	sort.SliceStable(r.contexts, func(i, j int) bool { return r.contexts[i].Name() < r.contexts[j].Name() })
	return true
}

func (r *Registry) remove(c *Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.contexts {
		if existing == c {
			r.contexts = append(r.contexts[:i:i], r.contexts[i+1:]...)
			return true
		}
	}
	return false
}

// Clean warns about stray files in the plugin root and purges the trash
// and temporary directories. Failures are logged only.
func (r *Registry) Clean() {
	if entries, err := os.ReadDir(r.Root()); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				r.log.Warn("Stray file in plugin directory, plugins must be directories",
					"path", filepath.Join(r.Root(), entry.Name()))
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		r.log.Error("Failed to scan plugin directory", "path", r.Root(), "error", err)
	}

	for _, dir := range []string{r.info.TrashDirectory, r.info.TemporaryDirectory} {
		if err := os.RemoveAll(dir); err != nil {
			r.log.Error("Failed to remove directory", "path", dir, "error", err)
		}
	}
	r.record(context.Background(), journal.ActionClean, "", r.Root(), nil)
}

// CheckUpdates compares downloaded plugins against the available
// releases. Only releases supporting the running driver are offered.
func (r *Registry) CheckUpdates(available []Metadata) []Update {
	var updates []Update
	for _, c := range r.Contexts() {
		installed, err := ReadMetadata(c.Directory)
		if err != nil {
			continue
		}
		var best *Metadata
		for i := range available {
			candidate := available[i]
			if !candidate.Same(*installed) || !candidate.NewerThan(*installed) {
				continue
			}
			if r.driverVersion != "" && !candidate.SupportsDriver(r.driverVersion) {
				continue
			}
			if best == nil || candidate.NewerThan(*best) {
				best = &candidate
			}
		}
		if best != nil {
			updates = append(updates, Update{Directory: c.Name(), Installed: *installed, Available: *best})
		}
	}
	return updates
}

// Close releases every loaded context.
func (r *Registry) Close() error {
	r.mu.Lock()
	contexts := r.contexts
	r.contexts = nil
	r.mu.Unlock()

	var errs []error
	for _, c := range contexts {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.FriendlyName, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) notify() {
	if r.bus != nil {
		r.bus.Emit(eventbus.TopicPluginsChanged, nil)
	}
}

func (r *Registry) record(ctx context.Context, action journal.Action, plugin, detail string, cause error) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, action, plugin, detail, cause); err != nil {
		r.log.Debug("Failed to record plugin event", "action", action, "error", err)
	}
}
