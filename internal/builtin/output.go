// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"math"
	"sync"
	"time"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/pipeline"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/tablet/report"
)

// Area is a rectangle given by its size and center.
type Area struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (a Area) empty() bool { return a.Width <= 0 || a.Height <= 0 }

// digitizer converts device units to millimetres. Unknown hardware maps
// one unit to one millimetre.
type digitizer struct {
	scaleX, scaleY float64
	full           Area
}

func newDigitizer(device *tablet.InputDevice) digitizer {
	d := digitizer{scaleX: 1, scaleY: 1}
	if device == nil || device.Configuration == nil {
		return d
	}
	spec := device.Configuration.Specifications.Digitizer
	if spec.MaxX > 0 && spec.Width > 0 {
		d.scaleX = spec.Width / spec.MaxX
	}
	if spec.MaxY > 0 && spec.Height > 0 {
		d.scaleY = spec.Height / spec.MaxY
	}
	d.full = Area{Width: spec.Width, Height: spec.Height, X: spec.Width / 2, Y: spec.Height / 2}
	return d
}

func (d digitizer) millimetres(p report.Vector2) report.Vector2 {
	return report.Vector2{X: p.X * d.scaleX, Y: p.Y * d.scaleY}
}

// AbsoluteMode maps the input area on the tablet onto the display area.
type AbsoluteMode struct {
	pipeline.Chain

	Input    Area `json:"input"`
	Display  Area `json:"display"`
	Clipping bool `json:"clipping"`

	digitizer digitizer
	out       Input
}

func newAbsoluteMode(args component.Args, out Input) (*AbsoluteMode, error) {
	m := &AbsoluteMode{digitizer: newDigitizer(args.Device), out: out}
	if err := args.Settings.Bind(m); err != nil {
		return nil, err
	}
	if m.Input.empty() {
		m.Input = m.digitizer.full
	}
	return m, nil
}

func (m *AbsoluteMode) Name() string { return "Absolute Mode" }

// Transform maps a position in device units to display pixels.
func (m *AbsoluteMode) Transform(r report.Report) report.Report {
	if m.Input.empty() || m.Display.empty() {
		return r
	}
	mm := m.digitizer.millimetres(r.Position)
	nx := (mm.X - (m.Input.X - m.Input.Width/2)) / m.Input.Width
	ny := (mm.Y - (m.Input.Y - m.Input.Height/2)) / m.Input.Height
	if m.Clipping {
		nx = clamp(nx, 0, 1)
		ny = clamp(ny, 0, 1)
	}
	r.Position = report.Vector2{
		X: m.Display.X - m.Display.Width/2 + nx*m.Display.Width,
		Y: m.Display.Y - m.Display.Height/2 + ny*m.Display.Height,
	}
	return r
}

func (m *AbsoluteMode) Read(r report.Report) {
	if r.Kind != report.KindTablet {
		return
	}
	r = m.Process(r, m.Transform)
	m.out.MoveTo(r.Position, r.Pressure)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// RelativeMode moves the cursor by the pen's displacement, like a mouse.
type RelativeMode struct {
	pipeline.Chain

	Sensitivity report.Vector2 `json:"sensitivity"`
	// ResetTime is the idle gap in milliseconds after which the next
	// report starts a new stroke instead of jumping.
	ResetTime float64 `json:"resetTime"`

	digitizer digitizer
	out       Input
	now       func() time.Time

	mu   sync.Mutex
	last *report.Vector2
	seen time.Time
}

func newRelativeMode(args component.Args, out Input) (*RelativeMode, error) {
	m := &RelativeMode{digitizer: newDigitizer(args.Device), out: out, now: time.Now}
	if err := args.Settings.Bind(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *RelativeMode) Name() string { return "Relative Mode" }

// Transform replaces the position with the displacement since the
// previous report, scaled to pixels.
func (m *RelativeMode) Transform(r report.Report) report.Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.digitizer.millimetres(r.Position)
	now := m.now()
	reset := m.last == nil || now.Sub(m.seen) > time.Duration(m.ResetTime*float64(time.Millisecond))
	delta := report.Vector2{}
	if !reset {
		delta = report.Vector2{
			X: (pos.X - m.last.X) * m.Sensitivity.X,
			Y: (pos.Y - m.last.Y) * m.Sensitivity.Y,
		}
	}
	m.last = &pos
	m.seen = now
	r.Position = delta
	return r
}

func (m *RelativeMode) Read(r report.Report) {
	switch r.Kind {
	case report.KindTablet:
		r = m.Process(r, m.Transform)
		if r.Position != (report.Vector2{}) {
			m.out.MoveBy(r.Position)
		}
	case report.KindOutOfRange:
		m.mu.Lock()
		m.last = nil
		m.mu.Unlock()
	}
}
