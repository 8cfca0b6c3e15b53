// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dotandev/tabletd/internal/builtin"
	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/eventbus"
	"github.com/dotandev/tabletd/internal/factory"
	"github.com/dotandev/tabletd/internal/hub"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Initialize subscribes to hotplug, loads plugins, detects tablets and
// applies the user's settings, recovering a corrupt settings file.
func (d *Daemon) Initialize(ctx context.Context) error {
	return d.submit(ctx, "initialize", d.initialize)
}

func (d *Daemon) initialize(ctx context.Context) (err error) {
	ctx, span := telemetry.Start(ctx, "daemon.initialize")
	defer func() { telemetry.End(span, err) }()

	if err := d.info.EnsureDirectories(); err != nil {
		return fmt.Errorf("creating application directories: %w", err)
	}
	if d.cancelHub == nil {
		d.cancelHub = d.hub.Subscribe(func(ev hub.Event) {
			if !ev.Empty() {
				d.trigger()
			}
		})
	}

	d.registry.Clean()
	if err := d.registry.Load(ctx); err != nil {
		d.log.Error("Failed to load plugins", "error", err)
	}
	d.detect(ctx)
	d.apply(ctx, d.loadUserSettings())
	return nil
}

func (d *Daemon) loadUserSettings() *settings.Settings {
	path := d.info.SettingsFile
	s, err := settings.Load(path)
	switch {
	case err == nil:
		return s
	case os.IsNotExist(err):
		d.log.Info("No settings file, using defaults", "path", path)
		return settings.Default()
	case errors.Is(err, errors.ErrSettingsCorrupt):
		d.log.Error("Invalid settings detected, attempting recovery", "path", path, "error", err)
		defaults := settings.Default()
		backup, rerr := settings.Recover(path, d.info.BackupDirectory, defaults)
		if rerr != nil {
			d.log.Error("Settings recovery failed", "error", rerr)
		} else {
			d.log.Info("Recovery complete", "backup", backup)
		}
		return defaults
	default:
		d.log.Error("Failed to read settings, using defaults", "path", path, "error", err)
		return settings.Default()
	}
}

// DetectTablets re-scans the hub and returns the configurations of the
// detected tablets.
func (d *Daemon) DetectTablets(ctx context.Context) ([]*tablet.Configuration, error) {
	return query(d, ctx, "detect", func(ctx context.Context) ([]*tablet.Configuration, error) {
		return d.detect(ctx), nil
	})
}

func (d *Daemon) detect(ctx context.Context) []*tablet.Configuration {
	ctx, span := telemetry.Start(ctx, "daemon.detect")
	defer span.End()

	d.state.send(eventDetect)
	configs := tablet.LoadConfigurations(d.info.ConfigurationDirectory)
	d.driver.Detect(ctx, configs)

	for _, dev := range d.devices() {
		dev.SetDebugSink(d.postDebugReport)
		dev.SetRawClone(d.debug)
	}
	detected := d.driver.Configurations()
	span.SetAttributes(attribute.Int("tablets", len(detected)))

	d.bus.Emit(eventbus.TopicTabletsChanged, detected)
	d.state.send(eventDetected)
	return detected
}

// Tablets returns the configurations of the detected tablets.
func (d *Daemon) Tablets() []*tablet.Configuration {
	return d.driver.Configurations()
}

// ApplySettings replaces the active settings and rebuilds every device
// pipeline and the tool set. Nil applies defaults.
func (d *Daemon) ApplySettings(ctx context.Context, s *settings.Settings) error {
	return d.submit(ctx, "apply", func(ctx context.Context) error {
		d.apply(ctx, s)
		return nil
	})
}

func (d *Daemon) apply(ctx context.Context, s *settings.Settings) {
	_, span := telemetry.Start(ctx, "daemon.apply")
	defer span.End()

	d.state.send(eventReconfigure)
	for _, dev := range d.devices() {
		if err := dev.Detach(); err != nil {
			d.log.Warn("Failed to release pipeline", "tablet", dev.Name(), "error", err)
		}
	}

	if s == nil {
		s = settings.Default()
	}
	d.settings = s

	for _, dev := range d.devices() {
		profile := s.Resolve(dev, builtin.DefaultProfile)
		d.builder.build(dev, profile)
	}
	d.log.Info("Driver is enabled", "tablets", len(d.devices()))

	d.restartTools()
	span.SetAttributes(attribute.Int("tools", len(d.tools)))

	d.bus.Emit(eventbus.TopicSettingsApplied, nil)
	d.state.send(eventApplied)
}

func (d *Daemon) restartTools() {
	if err := d.stopTools(); err != nil {
		d.log.Warn("Failed to stop tools", "error", err)
	}
	for _, store := range d.settings.Tools {
		if store == nil || !store.Enable {
			continue
		}
		name := d.factory.DisplayName(store)
		tool := factory.Construct[component.Tool](d.factory, component.CategoryTool, store, nil)
		if tool == nil {
			d.log.Error("Failed to initialize tool", "tool", name)
			continue
		}
		if err := tool.Initialize(); err != nil {
			d.log.Error("Failed to initialize tool", "tool", name, "error", err)
			_ = tool.Close()
			continue
		}
		d.tools = append(d.tools, tool)
	}
}

func (d *Daemon) stopTools() error {
	var errs []error
	for _, tool := range d.tools {
		if err := tool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.tools = nil
	return errors.Join(errs...)
}

// Settings returns a copy of the active settings.
func (d *Daemon) Settings(ctx context.Context) (*settings.Settings, error) {
	return query(d, ctx, "settings", func(context.Context) (*settings.Settings, error) {
		return clone(d.settings)
	})
}

func clone(s *settings.Settings) (*settings.Settings, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return settings.Decode(data, "")
}

// SaveSettings writes the active settings to the settings file.
func (d *Daemon) SaveSettings(ctx context.Context) error {
	return d.submit(ctx, "save-settings", func(context.Context) error {
		return d.save()
	})
}

// ApplyAndSaveSettings applies s and writes it to the settings file in one
// step, so no other reconfiguration can land in between.
func (d *Daemon) ApplyAndSaveSettings(ctx context.Context, s *settings.Settings) error {
	return d.submit(ctx, "apply-save", func(ctx context.Context) error {
		d.apply(ctx, s)
		return d.save()
	})
}

func (d *Daemon) save() error {
	if err := settings.Save(d.info.SettingsFile, d.settings); err != nil {
		return err
	}
	d.log.Info("Saved settings", "path", d.info.SettingsFile)
	return nil
}

// ResetSettings applies the default settings.
func (d *Daemon) ResetSettings(ctx context.Context) error {
	return d.ApplySettings(ctx, settings.Default())
}

// ApplyPreset applies the named preset.
func (d *Daemon) ApplyPreset(ctx context.Context, name string) error {
	return d.submit(ctx, "preset", func(ctx context.Context) error {
		if err := d.presets.Refresh(); err != nil {
			d.log.Warn("Failed to refresh presets", "error", err)
		}
		p, err := d.presets.Find(name)
		if err != nil {
			d.log.Warn("Unable to apply preset", "preset", name, "error", err)
			return err
		}
		d.apply(ctx, p.Settings)
		d.log.Info("Applied preset", "preset", name)
		return nil
	})
}

// SavePreset stores s under name.
func (d *Daemon) SavePreset(ctx context.Context, name string, s *settings.Settings) error {
	return d.submit(ctx, "save-preset", func(context.Context) error {
		return d.presets.Save(name, s)
	})
}

// Presets lists the saved preset names.
func (d *Daemon) Presets(ctx context.Context) ([]string, error) {
	return query(d, ctx, "presets", func(context.Context) ([]string, error) {
		if err := d.presets.Refresh(); err != nil {
			return nil, err
		}
		return d.presets.Names(), nil
	})
}

// SetTabletDebug turns raw report forwarding on or off for every
// endpoint of every detected tablet.
func (d *Daemon) SetTabletDebug(ctx context.Context, enabled bool) error {
	return d.submit(ctx, "debug", func(context.Context) error {
		d.debug = enabled
		for _, dev := range d.devices() {
			dev.SetRawClone(enabled)
		}
		d.log.Debug("Tablet debugging changed", "enabled", enabled)
		return nil
	})
}

func (d *Daemon) postDebugReport(r tablet.DebugReport) {
	d.reports.add(r)
	d.bus.Emit(eventbus.TopicDeviceReport, r)
}

// DebugReports returns the most recent debug reports, oldest first.
func (d *Daemon) DebugReports() []tablet.DebugReport {
	return d.reports.list()
}

// RequestDeviceString reads string descriptor index from the first
// connected endpoint with the given vendor and product IDs.
func (d *Daemon) RequestDeviceString(vendorID, productID int, index byte) (string, error) {
	for _, ep := range d.hub.Endpoints() {
		if ep.VendorID() == vendorID && ep.ProductID() == productID {
			return ep.DeviceString(index)
		}
	}
	return "", errors.WrapDeviceNotFound(vendorID, productID)
}
