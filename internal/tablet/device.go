// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package tablet

import (
	"sync"

	"github.com/dotandev/tabletd/internal/pipeline"
	"github.com/dotandev/tabletd/internal/tablet/report"
)

// DebugReport is a copy of a decoded report forwarded while debugging is on.
type DebugReport struct {
	Tablet   string        `json:"tablet"`
	Endpoint string        `json:"endpoint"`
	Report   report.Report `json:"report"`
}

// Source pairs an endpoint with the parser that decodes its reports.
type Source struct {
	Endpoint Endpoint
	Parser   report.Parser
}

// InputDevice is a recognized tablet built from one or more endpoints. It
// exclusively owns the pipeline attached to it.
type InputDevice struct {
	Configuration *Configuration
	Endpoints     []Endpoint
	// Parser decodes reports from endpoints without a parser of their own.
	Parser report.Parser

	parsers map[Endpoint]report.Parser

	// flow is held shared while a report is routed and exclusively while
	// the pipeline is released, so elements never see a report after Close.
	flow sync.RWMutex

	mu        sync.RWMutex
	pipeline  *pipeline.Pipeline
	listeners map[int]func(report.Report)
	nextID    int
	debug     func(DebugReport)
	cancels   []func()
}

// NewInputDevice binds endpoints sharing one parser to a configuration and
// starts receiving their raw reports. A nil parser leaves reports undecoded.
func NewInputDevice(cfg *Configuration, parser report.Parser, endpoints ...Endpoint) *InputDevice {
	sources := make([]Source, len(endpoints))
	for i, ep := range endpoints {
		sources[i] = Source{Endpoint: ep, Parser: parser}
	}
	d := NewCompositeDevice(cfg, sources...)
	if parser != nil {
		d.Parser = parser
	}
	return d
}

// NewCompositeDevice binds endpoints of one physical tablet, each decoded
// by its own parser, to a configuration. The first source's parser is the
// device's default.
func NewCompositeDevice(cfg *Configuration, sources ...Source) *InputDevice {
	d := &InputDevice{
		Configuration: cfg,
		Parser:        report.ParserFunc(report.Device),
		parsers:       make(map[Endpoint]report.Parser, len(sources)),
		listeners:     make(map[int]func(report.Report)),
	}
	if len(sources) > 0 && sources[0].Parser != nil {
		d.Parser = sources[0].Parser
	}
	for _, src := range sources {
		d.Endpoints = append(d.Endpoints, src.Endpoint)
		if src.Parser != nil {
			d.parsers[src.Endpoint] = src.Parser
		}
	}
	for _, ep := range d.Endpoints {
		ep := ep
		d.cancels = append(d.cancels, ep.Subscribe(func(data []byte) {
			d.Handle(ep, data)
		}))
	}
	return d
}

// ParserFor returns the parser decoding reports from ep.
func (d *InputDevice) ParserFor(ep Endpoint) report.Parser {
	if p, ok := d.parsers[ep]; ok {
		return p
	}
	return d.Parser
}

// Name is the configuration group the device belongs to.
func (d *InputDevice) Name() string {
	if d.Configuration == nil {
		return ""
	}
	return d.Configuration.Name
}

// Handle decodes one raw report from ep and routes it through the attached
// pipeline and report listeners.
func (d *InputDevice) Handle(ep Endpoint, data []byte) {
	r := d.ParserFor(ep).Parse(data)

	d.flow.RLock()
	defer d.flow.RUnlock()

	d.mu.RLock()
	debug := d.debug
	p := d.pipeline
	listeners := make([]func(report.Report), 0, len(d.listeners))
	for _, fn := range d.listeners {
		listeners = append(listeners, fn)
	}
	d.mu.RUnlock()

	if debug != nil && ep != nil && ep.RawClone() {
		debug(DebugReport{Tablet: d.Name(), Endpoint: ep.Path(), Report: r.Clone()})
	}
	for _, fn := range listeners {
		fn(r)
	}
	if p != nil && p.Output != nil {
		p.Output.Read(r)
	}
}

// OnReport registers fn for every decoded report. Binding handlers use it.
func (d *InputDevice) OnReport(fn func(report.Report)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// SetDebugSink installs the receiver for debug reports.
func (d *InputDevice) SetDebugSink(fn func(DebugReport)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debug = fn
}

// SetRawClone applies the debug flag to every endpoint.
func (d *InputDevice) SetRawClone(enabled bool) {
	for _, ep := range d.Endpoints {
		ep.SetRawClone(enabled)
	}
}

// OutputMode returns the attached output mode, or nil.
func (d *InputDevice) OutputMode() pipeline.OutputMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pipeline == nil {
		return nil
	}
	return d.pipeline.Output
}

// Pipeline returns the attached pipeline, or nil.
func (d *InputDevice) Pipeline() *pipeline.Pipeline {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pipeline
}

// Attach releases the current pipeline and then installs p. Reports
// arriving in between see no pipeline at all.
func (d *InputDevice) Attach(p *pipeline.Pipeline) error {
	err := d.Detach()

	d.mu.Lock()
	d.pipeline = p
	d.mu.Unlock()
	return err
}

// Detach removes and releases the current pipeline. It waits for reports
// already being routed through it.
func (d *InputDevice) Detach() error {
	d.flow.Lock()
	defer d.flow.Unlock()

	d.mu.Lock()
	old := d.pipeline
	d.pipeline = nil
	d.mu.Unlock()
	return old.Close()
}

// Close stops receiving endpoint reports and releases the pipeline.
func (d *InputDevice) Close() error {
	d.mu.Lock()
	cancels := d.cancels
	d.cancels = nil
	d.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return d.Detach()
}
