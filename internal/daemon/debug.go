// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"runtime"
	"sync"

	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/plugin"
	"github.com/dotandev/tabletd/internal/tablet"
)

const debugReportLimit = 256

type reportRing struct {
	mu    sync.Mutex
	items []tablet.DebugReport
	next  int
	full  bool
}

func newReportRing(size int) *reportRing {
	return &reportRing{items: make([]tablet.DebugReport, size)}
}

func (r *reportRing) add(rep tablet.DebugReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = rep
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

func (r *reportRing) list() []tablet.DebugReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]tablet.DebugReport{}, r.items[:r.next]...)
	}
	out := make([]tablet.DebugReport, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}

// CurrentLog returns the retained log history, oldest first.
func (d *Daemon) CurrentLog() []logger.Message {
	return logger.History.Messages()
}

// Diagnostics is a snapshot of the daemon for bug reports.
type Diagnostics struct {
	Version     string                `json:"version"`
	OS          string                `json:"os"`
	Arch        string                `json:"arch"`
	GoVersion   string                `json:"goVersion"`
	State       State                 `json:"state"`
	Transitions Transitions           `json:"transitions"`
	Endpoints   []tablet.EndpointInfo `json:"endpoints"`
	Devices     []string              `json:"devices"`
	Plugins     []plugin.Info         `json:"plugins"`
	Directories *config.AppInfo       `json:"directories"`
}

// Diagnostics collects the running state of the daemon.
func (d *Daemon) Diagnostics(ctx context.Context) (Diagnostics, error) {
	return query(d, ctx, "diagnostics", func(context.Context) (Diagnostics, error) {
		diag := Diagnostics{
			Version:     d.version,
			OS:          runtime.GOOS,
			Arch:        runtime.GOARCH,
			GoVersion:   runtime.Version(),
			State:       d.State(),
			Transitions: d.Transitions(),
			Directories: d.info,
		}
		for _, ep := range d.hub.Endpoints() {
			diag.Endpoints = append(diag.Endpoints, tablet.Describe(ep))
		}
		for _, dev := range d.devices() {
			diag.Devices = append(diag.Devices, dev.Name())
		}
		for _, c := range d.registry.Contexts() {
			diag.Plugins = append(diag.Plugins, c.Info())
		}
		return diag, nil
	})
}
