// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"fmt"
	goplugin "plugin"

	"github.com/dotandev/tabletd/internal/component"
)

// Module is a loaded module file.
type Module interface {
	Exports() []component.Export
	Close() error
}

// LoadRequest identifies a module file inside a plugin directory.
type LoadRequest struct {
	Path     string
	Plugin   string
	Manifest *ModuleManifest
}

// ModuleLoader loads module files of one extension.
type ModuleLoader interface {
	Load(ctx context.Context, req LoadRequest) (Module, error)
}

// ABIVersion is the native plugin ABI the daemon accepts.
const ABIVersion = 1

// ABISymbol is the exported symbol name for dynamic loading.
const ABISymbol = "TabletdPlugin"

// ABI is the descriptor a native plugin exports as a package level
// variable named TabletdPlugin.
type ABI struct {
	Version int
	Exports []component.Export
}

// NativeLoader opens Go plugin shared objects.
type NativeLoader struct{}

// Load opens the shared object and validates its ABI descriptor.
func (NativeLoader) Load(_ context.Context, req LoadRequest) (Module, error) {
	p, err := goplugin.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin %s: %w", req.Path, err)
	}

	sym, err := p.Lookup(ABISymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s missing %s symbol: %w", req.Path, ABISymbol, err)
	}

	var abi *ABI
	switch v := sym.(type) {
	case *ABI:
		abi = v
	case func() *ABI:
		abi = v()
	default:
		return nil, fmt.Errorf("plugin %s has invalid %s type %T", req.Path, ABISymbol, sym)
	}
	if err := validateABI(abi); err != nil {
		return nil, fmt.Errorf("plugin %s validation failed: %w", req.Path, err)
	}
	return staticModule(abi.Exports), nil
}

func validateABI(abi *ABI) error {
	if abi == nil {
		return fmt.Errorf("descriptor is nil")
	}
	if abi.Version != ABIVersion {
		return fmt.Errorf("plugin ABI version %d does not match current %d", abi.Version, ABIVersion)
	}
	for _, e := range abi.Exports {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// staticModule is a module whose exports need no release.
type staticModule []component.Export

func (m staticModule) Exports() []component.Export { return m }
func (staticModule) Close() error                   { return nil }

// StaticModule wraps a fixed export list, for loaders that hold no
// resources.
func StaticModule(exports ...component.Export) Module {
	return staticModule(exports)
}
