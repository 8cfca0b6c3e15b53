// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/pipeline"
	"github.com/dotandev/tabletd/internal/tablet/report"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// WasmABIVersion is the filter ABI WebAssembly modules must report.
const WasmABIVersion = 1

// Exports a WebAssembly filter module provides.
const (
	wasmExportABI       = "tabletd_abi_version"
	wasmExportPosition  = "position"
	wasmExportFilter    = "filter"
	wasmExportParameter = "set_parameter"
)

// WasmLoader loads WebAssembly filters. A module exports
//
//	tabletd_abi_version() -> i32
//	position() -> i32
//	filter(x f64, y f64, pressure i32) -> (f64, f64, i32)
//	set_parameter(index i32, value f64)   (optional)
//
// and may import tabletd.log(ptr, len i32) to write to the daemon log.
type WasmLoader struct{}

func (WasmLoader) Load(ctx context.Context, req LoadRequest) (Module, error) {
	code, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, err
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	mod, err := loadWasm(ctx, rt, code, req)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("wasm module %s: %w", filepath.Base(req.Path), err)
	}
	return mod, nil
}

func loadWasm(ctx context.Context, rt wazero.Runtime, code []byte, req LoadRequest) (*wasmModule, error) {
	log := logger.For(req.Plugin)

	_, err := rt.NewHostModuleBuilder("tabletd").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, ptr, length uint32) {
			if mem := m.Memory(); mem != nil {
				if data, ok := mem.Read(ptr, length); ok {
					log.Info(string(data))
				}
			}
		}).
		Export("log").
		Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}

	exported := compiled.ExportedFunctions()
	for _, name := range []string{wasmExportABI, wasmExportPosition, wasmExportFilter} {
		if _, ok := exported[name]; !ok {
			return nil, fmt.Errorf("missing export %q", name)
		}
	}

	probe, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate: %w", err)
	}
	defer probe.Close(ctx)

	abi, err := callI32(ctx, probe, wasmExportABI)
	if err != nil {
		return nil, err
	}
	if abi != WasmABIVersion {
		return nil, fmt.Errorf("filter ABI version %d does not match current %d", abi, WasmABIVersion)
	}
	pos, err := callI32(ctx, probe, wasmExportPosition)
	if err != nil {
		return nil, err
	}
	if pos != int32(pipeline.PreTransform) && pos != int32(pipeline.PostTransform) {
		return nil, fmt.Errorf("invalid filter position %d", pos)
	}

	m := &wasmModule{rt: rt, compiled: compiled}
	m.export = m.describe(req, pipeline.Position(pos))
	return m, nil
}

func callI32(ctx context.Context, mod api.Module, name string) (int32, error) {
	res, err := mod.ExportedFunction(name).Call(ctx)
	if err != nil {
		return 0, fmt.Errorf("calling %s: %w", name, err)
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("%s returned %d values", name, len(res))
	}
	return api.DecodeI32(res[0]), nil
}

type wasmModule struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	export   component.Export
}

func (m *wasmModule) describe(req LoadRequest, pos pipeline.Position) component.Export {
	stem := strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	e := component.Export{
		Path:        req.Plugin + "." + stem,
		DisplayName: stem,
		Categories:  []component.Category{component.CategoryFilter},
	}

	var params []Parameter
	if mm := req.Manifest; mm != nil {
		if mm.Type != "" {
			e.Path = mm.Type
		}
		if mm.DisplayName != "" {
			e.DisplayName = mm.DisplayName
		}
		params = mm.Parameters
	}

	defaults := make(map[string]any, len(params))
	for _, p := range params {
		defaults[p.Name] = p.Default
	}
	e.Defaults = component.MustValues(defaults)

	e.New = func(args component.Args) (any, error) {
		return m.instantiate(e.Path, pos, params, args.Settings)
	}
	return e
}

// instantiate creates an isolated instance so every element keeps its own
// memory.
func (m *wasmModule) instantiate(name string, pos pipeline.Position, params []Parameter, settings component.Values) (*wasmFilter, error) {
	ctx := context.Background()
	mod, err := m.rt.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate %s: %w", name, err)
	}

	if setter := mod.ExportedFunction(wasmExportParameter); setter != nil {
		values := map[string]float64{}
		if err := settings.Bind(&values); err != nil {
			_ = mod.Close(ctx)
			return nil, err
		}
		for i, p := range params {
			v, ok := values[p.Name]
			if !ok {
				v = p.Default
			}
			if _, err := setter.Call(ctx, api.EncodeI32(int32(i)), api.EncodeF64(v)); err != nil {
				_ = mod.Close(ctx)
				return nil, fmt.Errorf("setting %s on %s: %w", p.Name, name, err)
			}
		}
	}

	return &wasmFilter{
		name:     name,
		position: pos,
		mod:      mod,
		fn:       mod.ExportedFunction(wasmExportFilter),
	}, nil
}

func (m *wasmModule) Exports() []component.Export {
	return []component.Export{m.export}
}

func (m *wasmModule) Close() error {
	return m.rt.Close(context.Background())
}

// wasmFilter is a pipeline element backed by one module instance.
type wasmFilter struct {
	name     string
	position pipeline.Position

	mu  sync.Mutex
	mod api.Module
	fn  api.Function
}

func (f *wasmFilter) Name() string                { return f.name }
func (f *wasmFilter) Position() pipeline.Position { return f.position }

func (f *wasmFilter) Consume(r report.Report) report.Report {
	if r.Kind != report.KindTablet {
		return r
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mod == nil {
		return r
	}

	res, err := f.fn.Call(context.Background(),
		api.EncodeF64(r.Position.X), api.EncodeF64(r.Position.Y), api.EncodeI32(int32(r.Pressure)))
	if err != nil || len(res) != 3 {
		logger.For("Filter").Warn("WebAssembly filter failed", "filter", f.name, "error", err)
		return r
	}
	r.Position = report.Vector2{X: api.DecodeF64(res[0]), Y: api.DecodeF64(res[1])}
	if p := api.DecodeI32(res[2]); p >= 0 {
		r.Pressure = uint32(p)
	}
	return r
}

func (f *wasmFilter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mod == nil {
		return nil
	}
	err := f.mod.Close(context.Background())
	f.mod = nil
	return err
}
