// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package binding maps device input states to binding actions.
package binding

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/tablet/report"
)

// Binding is an action bound to one device input.
type Binding interface {
	Press(device string, r report.Report)
	Release(device string, r report.Report)
}

// Constructor builds the binding a store describes, or nil.
type Constructor func(store *settings.PluginSettingStore, device *tablet.InputDevice) Binding

type slot struct {
	name    string
	binding Binding
	pressed bool
}

func (s *slot) set(device string, down bool, r report.Report) {
	if s == nil || s.binding == nil || s.pressed == down {
		return
	}
	s.pressed = down
	if down {
		s.binding.Press(device, r)
	} else {
		s.binding.Release(device, r)
	}
}

// Handler watches a device's reports and drives its bindings.
type Handler struct {
	device          string
	maxPressure     float64
	tipThreshold    float64
	eraserThreshold float64

	mu     sync.Mutex
	tip    *slot
	eraser *slot
	pen    []*slot
	aux    []*slot
	cancel func()
	closed bool
}

// NewHandler constructs every configured binding and starts listening to
// device. Bindings that fail to construct are left unbound.
func NewHandler(device *tablet.InputDevice, s *settings.BindingSettings, construct Constructor) *Handler {
	if s == nil {
		s = &settings.BindingSettings{}
	}
	h := &Handler{
		device:          device.Name(),
		maxPressure:     1,
		tipThreshold:    s.TipActivationThreshold,
		eraserThreshold: s.EraserActivationThreshold,
	}
	if cfg := device.Configuration; cfg != nil && cfg.Specifications.Pen.MaxPressure > 0 {
		h.maxPressure = float64(cfg.Specifications.Pen.MaxPressure)
	}

	build := func(name string, store *settings.PluginSettingStore) *slot {
		if store == nil || !store.Enable || construct == nil {
			return nil
		}
		return &slot{name: name, binding: construct(store, device)}
	}
	h.tip = build("tip", s.TipButton)
	h.eraser = build("eraser", s.EraserButton)
	for i, store := range s.PenButtons {
		h.pen = append(h.pen, build(fmt.Sprintf("pen %d", i+1), store))
	}
	for i, store := range s.AuxButtons {
		h.aux = append(h.aux, build(fmt.Sprintf("aux %d", i+1), store))
	}

	h.cancel = device.OnReport(h.Handle)
	return h
}

// Handle updates binding states from one report.
func (h *Handler) Handle(r report.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	switch r.Kind {
	case report.KindTablet:
		percent := float64(r.Pressure) / h.maxPressure * 100
		if r.Eraser {
			h.tip.set(h.device, false, r)
			h.eraser.set(h.device, percent > h.eraserThreshold, r)
		} else {
			h.eraser.set(h.device, false, r)
			h.tip.set(h.device, percent > h.tipThreshold, r)
		}
		setAll(h.device, h.pen, r.PenButtons, r)
	case report.KindAux:
		setAll(h.device, h.aux, r.AuxButtons, r)
	case report.KindOutOfRange:
		h.tip.set(h.device, false, r)
		h.eraser.set(h.device, false, r)
		setAll(h.device, h.pen, nil, r)
	}
}

func setAll(device string, slots []*slot, states []bool, r report.Report) {
	for i, s := range slots {
		down := i < len(states) && states[i]
		s.set(device, down, r)
	}
}

// Close stops listening, releases held inputs and closes bindings that
// hold resources.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	slots := append([]*slot{h.tip, h.eraser}, h.pen...)
	slots = append(slots, h.aux...)
	h.tip, h.eraser, h.pen, h.aux = nil, nil, nil, nil

	var errs []error
	for _, s := range slots {
		if s == nil || s.binding == nil {
			continue
		}
		s.set(h.device, false, report.Report{Kind: report.KindOutOfRange})
		if c, ok := s.binding.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s binding: %w", s.name, err))
			}
		}
	}
	return errors.Join(errs...)
}
