// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package factory constructs component instances from settings stores.
package factory

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
)

// Source resolves type paths. *plugin.Registry implements it.
type Source interface {
	Lookup(path string) (component.Export, bool)
	Exports() []component.Export
}

// Factory builds components from the types a Source exposes.
type Factory struct {
	source Source
	log    *slog.Logger
}

func New(source Source) *Factory {
	return &Factory{source: source, log: logger.For("Factory")}
}

// New resolves store's type, checks it provides category, and constructs
// it with the type's defaults overlaid by the store's settings.
func (f *Factory) New(category component.Category, store *settings.PluginSettingStore, device *tablet.InputDevice) (any, error) {
	if store == nil {
		return nil, fmt.Errorf("no %s configured", category)
	}
	e, ok := f.source.Lookup(store.Path)
	if !ok {
		return nil, errors.WrapTypeNotFound(store.Path)
	}
	if !e.Is(category) {
		return nil, errors.WrapIncompatibleType(store.Path, string(category))
	}
	return construct(e, component.Args{
		Settings: e.Defaults.Merge(store.Values()),
		Device:   device,
	})
}

func construct(e component.Export, args component.Args) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructing %s panicked: %v", e.Path, r)
		}
	}()
	v, err = e.New(args)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", e.Path, err)
	}
	if v == nil {
		return nil, fmt.Errorf("constructing %s: constructor returned nil", e.Path)
	}
	return v, nil
}

// Construct builds a T from store. Disabled or missing stores, unknown or
// incompatible types, and failing constructors all yield the zero T;
// every failure but a disabled store is logged.
func Construct[T any](f *Factory, category component.Category, store *settings.PluginSettingStore, device *tablet.InputDevice) T {
	var zero T
	if store == nil || !store.Enable {
		return zero
	}

	v, err := f.New(category, store, device)
	if err != nil {
		f.log.Error("Failed to construct component", "category", category, "type", store.Path, "error", err)
		return zero
	}
	t, ok := v.(T)
	if !ok {
		f.log.Error("Component does not implement the requested interface",
			"category", category, "type", store.Path, "got", fmt.Sprintf("%T", v))
		closeValue(v)
		return zero
	}
	return t
}

func closeValue(v any) {
	if c, ok := v.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// DefaultSettings returns an enabled store carrying the type's defaults.
func (f *Factory) DefaultSettings(path string) (*settings.PluginSettingStore, error) {
	e, ok := f.source.Lookup(path)
	if !ok {
		return nil, errors.WrapTypeNotFound(path)
	}
	return settings.NewStore(path, e.Defaults), nil
}

// MatchingTypes lists the types providing category, sorted by path.
func (f *Factory) MatchingTypes(category component.Category) []component.Export {
	var out []component.Export
	for _, e := range f.source.Exports() {
		if e.Is(category) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// DisplayName is the friendly name of store's type, or its path when the
// type is unknown.
func (f *Factory) DisplayName(store *settings.PluginSettingStore) string {
	if store == nil {
		return ""
	}
	if e, ok := f.source.Lookup(store.Path); ok {
		return e.Name()
	}
	return store.Path
}

// Describe returns the export registered for path.
func (f *Factory) Describe(path string) (component.Export, error) {
	e, ok := f.source.Lookup(path)
	if !ok {
		return component.Export{}, errors.WrapTypeNotFound(path)
	}
	return e, nil
}
