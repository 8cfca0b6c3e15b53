// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"fmt"
	"testing"
	"time"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/pipeline"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/tablet/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInput struct {
	moves  []report.Vector2
	deltas []report.Vector2
	events []string
}

func (r *recordingInput) MoveTo(pos report.Vector2, _ uint32) { r.moves = append(r.moves, pos) }
func (r *recordingInput) MoveBy(delta report.Vector2)         { r.deltas = append(r.deltas, delta) }
func (r *recordingInput) Button(name string, down bool) {
	r.events = append(r.events, fmt.Sprintf("button %s %v", name, down))
}
func (r *recordingInput) Key(name string, down bool) {
	r.events = append(r.events, fmt.Sprintf("key %s %v", name, down))
}

func ctl480() *tablet.Configuration {
	return &tablet.Configuration{
		Name: "Wacom CTL-480",
		Specifications: tablet.Specifications{
			Digitizer: tablet.Digitizer{Width: 152, Height: 95, MaxX: 15200, MaxY: 9500},
			Pen:       tablet.Pen{MaxPressure: 1000, Buttons: 2},
		},
	}
}

func args(device *tablet.InputDevice, m map[string]any) component.Args {
	return component.Args{Settings: component.MustValues(m), Device: device}
}

func pen(x, y float64, pressure uint32) report.Report {
	return report.Report{Kind: report.KindTablet, Position: report.Vector2{X: x, Y: y}, Pressure: pressure}
}

func TestAbsoluteModeMapsFullDigitizerByDefault(t *testing.T) {
	device := tablet.NewInputDevice(ctl480(), nil)
	m, err := newAbsoluteMode(args(device, map[string]any{"display": DefaultDisplay, "clipping": true}), &recordingInput{})
	require.NoError(t, err)

	assert.InDelta(t, 152.0, m.Input.Width, 1e-9)
	assert.InDelta(t, 47.5, m.Input.Y, 1e-9)

	center := m.Transform(pen(7600, 4750, 0))
	assert.InDelta(t, 960.0, center.Position.X, 1e-6)
	assert.InDelta(t, 540.0, center.Position.Y, 1e-6)

	corner := m.Transform(pen(15200, 9500, 0))
	assert.InDelta(t, 1920.0, corner.Position.X, 1e-6)
	assert.InDelta(t, 1080.0, corner.Position.Y, 1e-6)
}

func TestAbsoluteModeClipping(t *testing.T) {
	device := tablet.NewInputDevice(ctl480(), nil)
	settings := map[string]any{"display": DefaultDisplay, "clipping": true}

	clipped, err := newAbsoluteMode(args(device, settings), &recordingInput{})
	require.NoError(t, err)
	out := clipped.Transform(pen(30400, -100, 0))
	assert.InDelta(t, 1920.0, out.Position.X, 1e-6)
	assert.InDelta(t, 0.0, out.Position.Y, 1e-6)

	settings["clipping"] = false
	free, err := newAbsoluteMode(args(device, settings), &recordingInput{})
	require.NoError(t, err)
	out = free.Transform(pen(30400, 0, 0))
	assert.InDelta(t, 3840.0, out.Position.X, 1e-6)
}

func TestAbsoluteModeReadRunsChain(t *testing.T) {
	in := &recordingInput{}
	device := tablet.NewInputDevice(ctl480(), nil)
	m, err := newAbsoluteMode(args(device, map[string]any{"display": DefaultDisplay}), in)
	require.NoError(t, err)

	smoothing, err := newSmoothing(args(device, map[string]any{"weight": 0.5}))
	require.NoError(t, err)
	m.SetElements([]pipeline.Element{smoothing})

	m.Read(report.Report{Kind: report.KindAux})
	m.Read(pen(0, 0, 0))
	m.Read(pen(15200, 9500, 0))

	require.Len(t, in.moves, 2)
	assert.InDelta(t, 960.0, in.moves[1].X, 1e-6, "smoothing halves the jump before the transform")
	require.NoError(t, m.Close())
	assert.Empty(t, m.Elements())
}

func TestRelativeModeMovesByDisplacement(t *testing.T) {
	in := &recordingInput{}
	m, err := newRelativeMode(args(nil, map[string]any{
		"sensitivity": report.Vector2{X: 2, Y: 3},
		"resetTime":   100,
	}), in)
	require.NoError(t, err)

	now := time.Unix(0, 0)
	m.now = func() time.Time { return now }

	m.Read(pen(10, 10, 0))
	assert.Empty(t, in.deltas, "first sample only anchors the stroke")

	now = now.Add(10 * time.Millisecond)
	m.Read(pen(15, 20, 0))
	require.Len(t, in.deltas, 1)
	assert.Equal(t, report.Vector2{X: 10, Y: 30}, in.deltas[0])

	now = now.Add(time.Second)
	m.Read(pen(100, 100, 0))
	assert.Len(t, in.deltas, 1, "an idle gap starts a new stroke")

	m.Read(report.Report{Kind: report.KindOutOfRange})
	now = now.Add(time.Millisecond)
	m.Read(pen(0, 0, 0))
	assert.Len(t, in.deltas, 1, "leaving range starts a new stroke")
}

func TestSmoothing(t *testing.T) {
	s, err := newSmoothing(args(nil, map[string]any{"weight": 0.25}))
	require.NoError(t, err)
	assert.Equal(t, pipeline.PreTransform, s.Position())

	assert.Equal(t, 0.0, s.Consume(pen(0, 0, 0)).Position.X)
	assert.Equal(t, 25.0, s.Consume(pen(100, 0, 0)).Position.X)

	s.Consume(report.Report{Kind: report.KindOutOfRange})
	assert.Equal(t, 100.0, s.Consume(pen(100, 0, 0)).Position.X)
}

func TestSmoothingClampsWeight(t *testing.T) {
	s, err := newSmoothing(args(nil, map[string]any{"weight": 4}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Weight)
}

func TestPressureCurve(t *testing.T) {
	device := tablet.NewInputDevice(ctl480(), nil)
	c, err := newPressureCurve(args(device, map[string]any{"exponent": 2, "deadzone": 10}))
	require.NoError(t, err)
	assert.Equal(t, pipeline.PostTransform, c.Position())

	assert.Equal(t, uint32(250), c.Consume(pen(0, 0, 500)).Pressure)
	assert.Equal(t, uint32(0), c.Consume(pen(0, 0, 50)).Pressure)
	assert.Equal(t, uint32(1000), c.Consume(pen(0, 0, 4000)).Pressure)

	aux := report.Report{Kind: report.KindAux, Pressure: 7}
	assert.Equal(t, aux, c.Consume(aux))
}

func TestBindings(t *testing.T) {
	in := &recordingInput{}

	mouse, err := newMouseBinding(args(nil, map[string]any{"button": MouseRight}), in)
	require.NoError(t, err)
	mouse.Press("tablet", report.Report{})
	mouse.Release("tablet", report.Report{})

	key, err := newKeyBinding(args(nil, map[string]any{"key": "Ctrl+Z"}), in)
	require.NoError(t, err)
	key.Press("tablet", report.Report{})

	assert.Equal(t, []string{"button right true", "button right false", "key Ctrl+Z true"}, in.events)

	_, err = newMouseBinding(args(nil, map[string]any{"button": "fourth"}), in)
	assert.ErrorContains(t, err, "unknown mouse button")
	_, err = newKeyBinding(args(nil, nil), in)
	assert.Error(t, err)
}

func TestLogTimerLifecycle(t *testing.T) {
	_, err := newLogTimer(args(nil, map[string]any{"interval": 0}))
	assert.Error(t, err)

	timer, err := newLogTimer(args(nil, map[string]any{"interval": 0.01}))
	require.NoError(t, err)
	require.NoError(t, timer.Initialize())
	assert.Error(t, timer.Initialize())
	require.NoError(t, timer.Close())
	require.NoError(t, timer.Close())
	require.NoError(t, timer.Initialize(), "a closed timer can be restarted")
	require.NoError(t, timer.Close())
}

func TestExportsConstructWithDefaults(t *testing.T) {
	device := tablet.NewInputDevice(ctl480(), nil)
	seen := map[string]bool{}

	for _, e := range Exports(nil) {
		require.NoError(t, e.Validate(), e.Path)
		assert.False(t, seen[e.Path], "duplicate path %s", e.Path)
		seen[e.Path] = true

		v, err := e.New(component.Args{Settings: e.Defaults, Device: device})
		if e.Path == KeyBindingPath {
			assert.Error(t, err, "key bindings need a key")
			continue
		}
		require.NoError(t, err, e.Path)

		switch {
		case e.Is(component.CategoryOutputMode):
			assert.Implements(t, (*pipeline.OutputMode)(nil), v)
		case e.Is(component.CategoryFilter):
			assert.Implements(t, (*pipeline.Element)(nil), v)
		case e.Is(component.CategoryParser):
			assert.Implements(t, (*report.Parser)(nil), v)
		case e.Is(component.CategoryTool):
			assert.Implements(t, (*component.Tool)(nil), v)
		}
	}
}

func TestDefaultProfile(t *testing.T) {
	cfg := ctl480()
	cfg.Specifications.Pen.Buttons = 3
	cfg.Specifications.AuxiliaryButtons = 4

	p := DefaultProfile(cfg)
	require.NotNil(t, p.OutputMode)
	assert.Equal(t, AbsoluteModePath, p.OutputMode.Path)
	assert.True(t, p.OutputMode.Enable)
	assert.Empty(t, p.Filters)

	b := p.BindingSettings
	require.NotNil(t, b)
	assert.Nil(t, b.TipButton)
	assert.Nil(t, b.EraserButton)
	require.Len(t, b.PenButtons, 3)
	for _, store := range b.PenButtons {
		assert.Nil(t, store)
	}
	require.Len(t, b.AuxButtons, 4)
	for _, store := range b.AuxButtons {
		assert.Nil(t, store)
	}

	empty := DefaultProfile(nil)
	assert.NotNil(t, empty.BindingSettings.PenButtons)
	assert.Empty(t, empty.BindingSettings.PenButtons)
}
