// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"log/slog"
	"strings"

	"github.com/dotandev/tabletd/internal/binding"
	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/factory"
	"github.com/dotandev/tabletd/internal/pipeline"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
)

// builder turns a profile into a device pipeline.
type builder struct {
	factory *factory.Factory
	log     *slog.Logger
}

// build releases device's current pipeline and attaches a new one built
// from profile. A missing output mode leaves the device without a chain
// but its bindings still work.
func (b *builder) build(device *tablet.InputDevice, profile *settings.Profile) *pipeline.Pipeline {
	group := device.Name()
	if err := device.Detach(); err != nil {
		b.log.Warn("Failed to release pipeline", "tablet", group, "error", err)
	}

	p := &pipeline.Pipeline{}
	p.Output = factory.Construct[pipeline.OutputMode](b.factory, component.CategoryOutputMode, profile.OutputMode, device)
	if p.Output != nil {
		b.log.Info("Output mode", "tablet", group, "mode", b.factory.DisplayName(profile.OutputMode))
		elements := b.filters(device, profile.Filters)
		p.Output.SetElements(elements)
		if len(elements) > 0 {
			names := make([]string, len(elements))
			for i, e := range p.Output.Elements() {
				names[i] = pipeline.Name(e)
			}
			b.log.Info("Filters", "tablet", group, "filters", strings.Join(names, ", "))
		}
	} else {
		b.log.Warn("No output mode", "tablet", group)
	}

	p.Bindings = binding.NewHandler(device, profile.BindingSettings, b.binding)

	if err := device.Attach(p); err != nil {
		b.log.Warn("Failed to release pipeline", "tablet", group, "error", err)
	}
	return p
}

func (b *builder) filters(device *tablet.InputDevice, stores []*settings.PluginSettingStore) []pipeline.Element {
	var out []pipeline.Element
	for _, store := range stores {
		if store == nil || !store.Enable {
			continue
		}
		if e := factory.Construct[pipeline.Element](b.factory, component.CategoryFilter, store, device); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (b *builder) binding(store *settings.PluginSettingStore, device *tablet.InputDevice) binding.Binding {
	return factory.Construct[binding.Binding](b.factory, component.CategoryBinding, store, device)
}
