// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package driver matches hub endpoints against tablet configurations and
// keeps the resulting input devices.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/factory"
	"github.com/dotandev/tabletd/internal/hub"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/tablet/report"
	"github.com/dotandev/tabletd/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Driver owns the detected input devices. Detect and Close must not run
// concurrently; the read accessors are safe from any goroutine.
type Driver struct {
	hub     hub.Hub
	factory *factory.Factory
	log     *slog.Logger

	mu      sync.RWMutex
	devices []*tablet.InputDevice
	keys    map[*tablet.InputDevice]string
}

func New(h hub.Hub, f *factory.Factory) *Driver {
	return &Driver{
		hub:     h,
		factory: f,
		log:     logger.For("Driver"),
		keys:    make(map[*tablet.InputDevice]string),
	}
}

// Hub returns the device hub the driver scans.
func (d *Driver) Hub() hub.Hub { return d.hub }

// Devices returns the detected input devices in detection order.
func (d *Driver) Devices() []*tablet.InputDevice {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*tablet.InputDevice, len(d.devices))
	copy(out, d.devices)
	return out
}

// Configurations returns the distinct configurations of the detected
// devices.
func (d *Driver) Configurations() []*tablet.Configuration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := make(map[*tablet.Configuration]bool)
	var out []*tablet.Configuration
	for _, dev := range d.devices {
		if !seen[dev.Configuration] {
			seen[dev.Configuration] = true
			out = append(out, dev.Configuration)
		}
	}
	return out
}

// member is one endpoint of a matched tablet.
type member struct {
	endpoint tablet.Endpoint
	parser   string
	aux      bool
}

// match is one physical tablet: every endpoint it exposes that the
// configuration describes, digitizer endpoints first.
type match struct {
	key     string
	cfg     *tablet.Configuration
	members []member
}

// Detect re-scans the hub against configs. Devices whose configuration,
// endpoints and parsers are unchanged are kept as they are; the rest are
// closed and replaced. It reports whether the device set changed.
func (d *Driver) Detect(ctx context.Context, configs []*tablet.Configuration) bool {
	_, span := telemetry.Start(ctx, "driver.detect")
	defer span.End()

	matches := d.match(configs)

	d.mu.RLock()
	existing := make(map[string]*tablet.InputDevice, len(d.devices))
	for _, dev := range d.devices {
		existing[d.keys[dev]] = dev
	}
	d.mu.RUnlock()

	var (
		next    []*tablet.InputDevice
		keys    = make(map[*tablet.InputDevice]string)
		changed bool
	)
	for _, m := range matches {
		if dev, ok := existing[m.key]; ok {
			delete(existing, m.key)
			next = append(next, dev)
			keys[dev] = m.key
			continue
		}
		dev := d.build(m)
		if dev == nil {
			continue
		}
		next = append(next, dev)
		keys[dev] = m.key
		changed = true
	}

	var errs []error
	for _, dev := range existing {
		d.log.Info("Tablet disconnected", "tablet", dev.Name())
		errs = append(errs, dev.Close())
		changed = true
	}
	if err := errors.Join(errs...); err != nil {
		d.log.Warn("Failed to release disconnected tablet", "error", err)
	}

	d.mu.Lock()
	d.devices = next
	d.keys = keys
	d.mu.Unlock()

	span.SetAttributes(attribute.Int("devices", len(next)), attribute.Bool("changed", changed))
	if len(next) == 0 {
		d.log.Info("No tablets detected")
	}
	return changed
}

// build constructs the parsers of m and binds its endpoints into one input
// device. Endpoints without a usable parser are left out; a tablet left
// without a digitizer endpoint is skipped.
func (d *Driver) build(m *match) *tablet.InputDevice {
	var (
		sources   []tablet.Source
		digitizer bool
		paths     []string
	)
	for _, mb := range m.members {
		parser := factory.Construct[report.Parser](d.factory, component.CategoryParser,
			settings.NewStore(mb.parser, nil), nil)
		if parser == nil {
			d.log.Error("Skipping endpoint without a usable report parser",
				"tablet", m.cfg.Name, "endpoint", mb.endpoint.Path(), "parser", mb.parser)
			continue
		}
		sources = append(sources, tablet.Source{Endpoint: mb.endpoint, Parser: parser})
		paths = append(paths, tablet.Describe(mb.endpoint).String())
		digitizer = digitizer || !mb.aux
	}
	if !digitizer {
		if len(sources) > 0 {
			d.log.Warn("Skipping tablet without a digitizer endpoint", "tablet", m.cfg.Name)
		}
		return nil
	}
	d.log.Info("Detected tablet", "tablet", m.cfg.Name, "endpoints", strings.Join(paths, ", "))
	return tablet.NewCompositeDevice(m.cfg, sources...)
}

// match pairs each endpoint with the first configuration identifier that
// describes it, then groups endpoints of the same physical device and
// configuration. Configurations are tried in order.
func (d *Driver) match(configs []*tablet.Configuration) []*match {
	var out []*match
	groups := make(map[string]*match)
	for _, ep := range d.hub.Endpoints() {
		for _, cfg := range configs {
			id, aux, ok := identify(cfg, ep)
			if !ok {
				continue
			}
			group := cfg.Name + "\x00" + tablet.PhysicalID(ep)
			m, exists := groups[group]
			if !exists {
				m = &match{key: group, cfg: cfg}
				groups[group] = m
				out = append(out, m)
			}
			m.members = append(m.members, member{endpoint: ep, parser: id.ReportParser, aux: aux})
			break
		}
	}

	for _, m := range out {
		sort.SliceStable(m.members, func(i, j int) bool {
			return !m.members[i].aux && m.members[j].aux
		})
		for _, mb := range m.members {
			m.key += "\x00" + mb.endpoint.Path() + "\x00" + mb.parser
		}
	}
	return out
}

func identify(cfg *tablet.Configuration, ep tablet.Endpoint) (tablet.Identifier, bool, bool) {
	for _, id := range cfg.DigitizerIdentifiers {
		if id.Matches(ep) {
			return id, false, true
		}
	}
	for _, id := range cfg.AuxiliaryIdentifiers {
		if id.Matches(ep) {
			return id, true, true
		}
	}
	return tablet.Identifier{}, false, false
}

// Close releases every device.
func (d *Driver) Close() error {
	d.mu.Lock()
	devices := d.devices
	d.devices = nil
	d.keys = make(map[*tablet.InputDevice]string)
	d.mu.Unlock()

	var errs []error
	for _, dev := range devices {
		errs = append(errs, dev.Close())
	}
	return errors.Join(errs...)
}
