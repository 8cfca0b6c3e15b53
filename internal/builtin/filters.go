// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"math"
	"sync"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/pipeline"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/tablet/report"
)

// Smoothing is an exponential moving average over pen positions.
type Smoothing struct {
	pipeline.NopCloser

	// Weight of the newest sample, between 0 and 1.
	Weight float64 `json:"weight"`

	mu   sync.Mutex
	last *report.Vector2
}

func newSmoothing(args component.Args) (*Smoothing, error) {
	s := &Smoothing{Weight: 0.5}
	if err := args.Settings.Bind(s); err != nil {
		return nil, err
	}
	s.Weight = clamp(s.Weight, 0, 1)
	return s, nil
}

func (s *Smoothing) Name() string                { return "Smoothing" }
func (s *Smoothing) Position() pipeline.Position { return pipeline.PreTransform }

func (s *Smoothing) Consume(r report.Report) report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Kind {
	case report.KindOutOfRange:
		s.last = nil
	case report.KindTablet:
		if s.last != nil {
			r.Position = report.Vector2{
				X: s.last.X + s.Weight*(r.Position.X-s.last.X),
				Y: s.last.Y + s.Weight*(r.Position.Y-s.last.Y),
			}
		}
		pos := r.Position
		s.last = &pos
	}
	return r
}

// PressureCurve reshapes pressure as max * (p/max)^Exponent and applies a
// deadzone below Deadzone percent.
type PressureCurve struct {
	pipeline.NopCloser

	Exponent float64 `json:"exponent"`
	Deadzone float64 `json:"deadzone"`

	max float64
}

func newPressureCurve(args component.Args) (*PressureCurve, error) {
	c := &PressureCurve{Exponent: 1, max: maxPressure(args.Device)}
	if err := args.Settings.Bind(c); err != nil {
		return nil, err
	}
	if c.Exponent <= 0 {
		c.Exponent = 1
	}
	return c, nil
}

func maxPressure(device *tablet.InputDevice) float64 {
	if device == nil || device.Configuration == nil || device.Configuration.Specifications.Pen.MaxPressure == 0 {
		return 1
	}
	return float64(device.Configuration.Specifications.Pen.MaxPressure)
}

func (c *PressureCurve) Name() string                { return "Pressure Curve" }
func (c *PressureCurve) Position() pipeline.Position { return pipeline.PostTransform }

func (c *PressureCurve) Consume(r report.Report) report.Report {
	if r.Kind != report.KindTablet {
		return r
	}
	p := math.Min(float64(r.Pressure)/c.max, 1)
	if p*100 <= c.Deadzone {
		r.Pressure = 0
		return r
	}
	r.Pressure = uint32(math.Round(math.Pow(p, c.Exponent) * c.max))
	return r
}
