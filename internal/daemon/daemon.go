// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package daemon is the device-session orchestrator. It owns the plugin
// registry, the detected devices, the active settings and the running
// tools, and serializes every change to them on one control goroutine.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dotandev/tabletd/internal/builtin"
	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/crashreport"
	"github.com/dotandev/tabletd/internal/driver"
	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/eventbus"
	"github.com/dotandev/tabletd/internal/factory"
	"github.com/dotandev/tabletd/internal/hub"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/plugin"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/updater"
)

// Options wires a Daemon. Info and Hub are required.
type Options struct {
	Info    *config.AppInfo
	Hub     hub.Hub
	Version string

	// Input receives output mode and binding actions. Defaults to
	// builtin.LogInput.
	Input builtin.Input
	Bus   *eventbus.EventBus
	// Journal records plugin lifecycle events when set.
	Journal plugin.Recorder
	// Catalog resolves plugin names for downloads and update checks.
	Catalog *updater.Checker
	Crash   *crashreport.Reporter
	// PluginOptions are appended to the registry's defaults.
	PluginOptions []plugin.Option
}

type task struct {
	name string
	fn   func(ctx context.Context) error
	ctx  context.Context
	done chan error
}

// Daemon is the session orchestrator.
type Daemon struct {
	info     *config.AppInfo
	version  string
	bus      *eventbus.EventBus
	hub      hub.Hub
	registry *plugin.Registry
	factory  *factory.Factory
	driver   *driver.Driver
	builder  *builder
	presets  *settings.PresetManager
	catalog  *updater.Checker
	crash    *crashreport.Reporter
	state    *lifecycle
	log      *slog.Logger

	tasks  chan task
	rescan chan struct{}
	quit   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
	startOnce sync.Once
	started   atomic.Bool

	// Owned by the control loop.
	settings    *settings.Settings
	tools       []component.Tool
	debug       bool
	initialized bool
	cancelHub   func()

	reports *reportRing
}

// New builds the orchestrator. Nothing runs until Start.
func New(opts Options) (*Daemon, error) {
	if opts.Info == nil {
		return nil, errors.WrapConfigError("app info is required", nil)
	}
	if opts.Hub == nil {
		return nil, errors.WrapConfigError("device hub is required", nil)
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.New()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	pluginOpts := []plugin.Option{
		plugin.WithCoreExports(builtin.Exports(opts.Input)...),
		plugin.WithEventBus(opts.Bus),
		plugin.WithDriverVersion(opts.Version),
	}
	if opts.Journal != nil {
		pluginOpts = append(pluginOpts, plugin.WithJournal(opts.Journal))
	}
	pluginOpts = append(pluginOpts, opts.PluginOptions...)
	registry := plugin.New(opts.Info, pluginOpts...)

	state, err := newLifecycle()
	if err != nil {
		return nil, fmt.Errorf("building session state machine: %w", err)
	}

	f := factory.New(registry)
	d := &Daemon{
		info:     opts.Info,
		version:  opts.Version,
		bus:      opts.Bus,
		hub:      opts.Hub,
		registry: registry,
		factory:  f,
		driver:   driver.New(opts.Hub, f),
		builder:  &builder{factory: f, log: logger.For("Pipeline")},
		presets:  settings.NewPresetManager(opts.Info.PresetDirectory),
		catalog:  opts.Catalog,
		crash:    opts.Crash,
		state:    state,
		log:      logger.For("Daemon"),
		tasks:    make(chan task),
		rescan:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
		settings: settings.Default(),
		reports:  newReportRing(debugReportLimit),
	}
	return d, nil
}

// Start runs the control loop.
func (d *Daemon) Start() {
	d.startOnce.Do(func() {
		d.started.Store(true)
		go d.loop()
	})
}

func (d *Daemon) loop() {
	defer close(d.exited)
	for {
		select {
		case <-d.quit:
			return
		case t := <-d.tasks:
			t.done <- d.run(t)
		case <-d.rescan:
			d.hotplug()
		}
	}
}

func (d *Daemon) run(t task) (err error) {
	defer d.crash.Recover(t.ctx, t.name, &err)
	if err := t.ctx.Err(); err != nil {
		return err
	}
	return t.fn(t.ctx)
}

// submit runs fn on the control loop and waits for it. A cancelled ctx
// stops the wait; a task already running still completes.
func (d *Daemon) submit(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	t := task{name: name, fn: fn, ctx: context.WithoutCancel(ctx), done: make(chan error, 1)}
	select {
	case d.tasks <- t:
	case <-d.quit:
		return errors.ErrDaemonStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// query is submit for functions returning a value.
func query[T any](d *Daemon, ctx context.Context, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := d.submit(ctx, name, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// trigger schedules a detect and apply cycle. Triggers arriving while one
// is pending collapse into it.
func (d *Daemon) trigger() {
	select {
	case d.rescan <- struct{}{}:
	default:
	}
}

func (d *Daemon) hotplug() {
	ctx := context.Background()
	var err error
	func() {
		defer d.crash.Recover(ctx, "hotplug", &err)
		d.log.Info("Devices changed, detecting tablets")
		d.detect(ctx)
		d.apply(ctx, d.settings)
	}()
	if err != nil {
		d.log.Error("Hotplug cycle failed", "error", err)
	}
}

// State returns the orchestrator's lifecycle state.
func (d *Daemon) State() State { return d.state.state() }

// Transitions returns lifecycle counters.
func (d *Daemon) Transitions() Transitions { return d.state.transitions() }

// Bus is the notification bus shared with the registry and devices.
func (d *Daemon) Bus() *eventbus.EventBus { return d.bus }

// Registry exposes the plugin registry for read-only queries.
func (d *Daemon) Registry() *plugin.Registry { return d.registry }

// Factory exposes the plugin factory for metadata queries.
func (d *Daemon) Factory() *factory.Factory { return d.factory }

// AppInfo returns the daemon's directory layout.
func (d *Daemon) AppInfo() *config.AppInfo { return d.info }

// Version is the running driver version.
func (d *Daemon) Version() string { return d.version }

// Close stops the control loop after releasing every pipeline and tool.
func (d *Daemon) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		if d.started.Load() {
			err = d.submit(ctx, "shutdown", func(context.Context) error {
				return d.shutdown()
			})
			close(d.quit)
			select {
			case <-d.exited:
			case <-ctx.Done():
			}
		} else {
			close(d.quit)
			err = d.shutdown()
		}
		d.state.stop()
		if cerr := d.registry.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	})
	return err
}

// shutdown runs on the control loop.
func (d *Daemon) shutdown() error {
	if d.cancelHub != nil {
		d.cancelHub()
		d.cancelHub = nil
	}
	errs := []error{d.stopTools()}
	errs = append(errs, d.driver.Close())
	return errors.Join(errs...)
}

func (d *Daemon) devices() []*tablet.InputDevice {
	return d.driver.Devices()
}
