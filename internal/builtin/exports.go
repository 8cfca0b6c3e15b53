// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package builtin provides the component types shipped with the daemon:
// output modes, filters, report parsers, bindings and a reference tool.
package builtin

import (
	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/tablet/report"
)

// Type paths of the core components.
const (
	AbsoluteModePath  = "tabletd.output.AbsoluteMode"
	RelativeModePath  = "tabletd.output.RelativeMode"
	SmoothingPath     = "tabletd.filters.Smoothing"
	PressureCurvePath = "tabletd.filters.PressureCurve"
	TabletParserPath  = "tabletd.parsers.Tablet"
	AuxParserPath     = "tabletd.parsers.Aux"
	Intuos3ParserPath = "tabletd.parsers.wacom.Intuos3"
	MouseBindingPath  = "tabletd.bindings.MouseBinding"
	KeyBindingPath    = "tabletd.bindings.KeyBinding"
	LogTimerPath      = "tabletd.tools.LogTimer"
)

// DefaultDisplay is the display area used until the front-end supplies one.
var DefaultDisplay = Area{Width: 1920, Height: 1080, X: 960, Y: 540}

// Exports returns the core component types. Output modes and bindings
// drive in; a nil in falls back to LogInput.
func Exports(in Input) []component.Export {
	if in == nil {
		in = &LogInput{}
	}
	return []component.Export{
		{
			Path:        AbsoluteModePath,
			DisplayName: "Absolute Mode",
			Description: "Maps the tablet area onto a display area.",
			Categories:  []component.Category{component.CategoryOutputMode},
			Defaults: component.MustValues(map[string]any{
				"display":  DefaultDisplay,
				"clipping": true,
			}),
			New: func(args component.Args) (any, error) { return newAbsoluteMode(args, in) },
		},
		{
			Path:        RelativeModePath,
			DisplayName: "Relative Mode",
			Description: "Moves the cursor by pen displacement.",
			Categories:  []component.Category{component.CategoryOutputMode},
			Defaults: component.MustValues(map[string]any{
				"sensitivity": report.Vector2{X: 10, Y: 10},
				"resetTime":   100,
			}),
			New: func(args component.Args) (any, error) { return newRelativeMode(args, in) },
		},
		{
			Path:        SmoothingPath,
			DisplayName: "Smoothing",
			Description: "Exponential moving average over pen positions.",
			Categories:  []component.Category{component.CategoryFilter},
			Defaults:    component.MustValues(map[string]any{"weight": 0.5}),
			New:         func(args component.Args) (any, error) { return newSmoothing(args) },
		},
		{
			Path:        PressureCurvePath,
			DisplayName: "Pressure Curve",
			Description: "Reshapes pen pressure with an exponent and a deadzone.",
			Categories:  []component.Category{component.CategoryFilter},
			Defaults:    component.MustValues(map[string]any{"exponent": 1.0, "deadzone": 0.0}),
			New:         func(args component.Args) (any, error) { return newPressureCurve(args) },
		},
		parser(TabletParserPath, "Tablet Report Parser", report.ParserFunc(report.DecodeTablet)),
		parser(AuxParserPath, "Auxiliary Report Parser", report.ParserFunc(report.DecodeAux)),
		parser(Intuos3ParserPath, "Wacom Intuos3 Report Parser", report.Intuos3()),
		{
			Path:        MouseBindingPath,
			DisplayName: "Mouse Button Binding",
			Categories:  []component.Category{component.CategoryBinding},
			Defaults:    component.MustValues(map[string]any{"button": MouseLeft}),
			New:         func(args component.Args) (any, error) { return newMouseBinding(args, in) },
		},
		{
			Path:        KeyBindingPath,
			DisplayName: "Key Binding",
			Categories:  []component.Category{component.CategoryBinding},
			New:         func(args component.Args) (any, error) { return newKeyBinding(args, in) },
		},
		{
			Path:        LogTimerPath,
			DisplayName: "Log Timer",
			Description: "Logs a heartbeat message at a fixed interval.",
			Categories:  []component.Category{component.CategoryTool},
			Defaults:    component.MustValues(map[string]any{"interval": 60.0}),
			New:         func(args component.Args) (any, error) { return newLogTimer(args) },
		},
	}
}

func parser(path, name string, p report.Parser) component.Export {
	return component.Export{
		Path:        path,
		DisplayName: name,
		Categories:  []component.Category{component.CategoryParser},
		New:         func(component.Args) (any, error) { return p, nil },
	}
}

// DefaultProfile is the profile created for a tablet group seen for the
// first time: absolute mode over the whole digitizer, no filters and no
// bindings. Pen and aux slots are left unbound, one per physical button.
func DefaultProfile(cfg *tablet.Configuration) *settings.Profile {
	b := &settings.BindingSettings{
		TipActivationThreshold:    1,
		EraserActivationThreshold: 1,
		PenButtons:                []*settings.PluginSettingStore{},
		AuxButtons:                []*settings.PluginSettingStore{},
	}
	if cfg != nil {
		b.PenButtons = make([]*settings.PluginSettingStore, cfg.Specifications.Pen.Buttons)
		b.AuxButtons = make([]*settings.PluginSettingStore, cfg.Specifications.AuxiliaryButtons)
	}

	return &settings.Profile{
		OutputMode: settings.NewStore(AbsoluteModePath, component.MustValues(map[string]any{
			"display":  DefaultDisplay,
			"clipping": true,
		})),
		Filters:         []*settings.PluginSettingStore{},
		BindingSettings: b,
	}
}

var _ settings.Defaults = DefaultProfile
