// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package hub enumerates device endpoints and reports hotplug changes.
package hub

import (
	"github.com/dotandev/tabletd/internal/tablet"
)

// Event describes one change of the connected endpoint set.
type Event struct {
	Additions []tablet.Endpoint
	Removals  []tablet.Endpoint
}

// Empty reports whether the event carries no change.
func (e Event) Empty() bool {
	return len(e.Additions) == 0 && len(e.Removals) == 0
}

// Hub owns the endpoints of the connected hardware.
type Hub interface {
	// Endpoints returns the currently connected endpoints.
	Endpoints() []tablet.Endpoint
	// Subscribe registers fn for hotplug events and returns a cancel func.
	Subscribe(fn func(Event)) (cancel func())
	Close() error
}
