// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dotandev/tabletd/internal/eventbus"
	"github.com/dotandev/tabletd/internal/tablet"
)

// Memory is a hub whose endpoints are added and removed by the caller.
// Tests and the simulated daemon mode use it.
type Memory struct {
	bus *eventbus.EventBus

	mu        sync.RWMutex
	endpoints []tablet.Endpoint
}

func NewMemory(endpoints ...tablet.Endpoint) *Memory {
	return &Memory{bus: eventbus.New(), endpoints: endpoints}
}

func (m *Memory) Endpoints() []tablet.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tablet.Endpoint, len(m.endpoints))
	copy(out, m.endpoints)
	return out
}

func (m *Memory) Subscribe(fn func(Event)) (cancel func()) {
	return m.bus.On(eventbus.TopicHubChanged, func(payload any) {
		if ev, ok := payload.(Event); ok {
			fn(ev)
		}
	})
}

// Add connects endpoints and notifies subscribers.
func (m *Memory) Add(endpoints ...tablet.Endpoint) {
	m.mu.Lock()
	m.endpoints = append(m.endpoints, endpoints...)
	m.mu.Unlock()
	m.bus.Emit(eventbus.TopicHubChanged, Event{Additions: endpoints})
}

// Remove disconnects endpoints and notifies subscribers.
func (m *Memory) Remove(endpoints ...tablet.Endpoint) {
	gone := make(map[tablet.Endpoint]bool, len(endpoints))
	for _, ep := range endpoints {
		gone[ep] = true
	}

	m.mu.Lock()
	kept := m.endpoints[:0:0]
	for _, ep := range m.endpoints {
		if !gone[ep] {
			kept = append(kept, ep)
		}
	}
	m.endpoints = kept
	m.mu.Unlock()
	m.bus.Emit(eventbus.TopicHubChanged, Event{Removals: endpoints})
}

func (m *Memory) Close() error { return nil }

// MemoryEndpoint is an endpoint fed by Send.
type MemoryEndpoint struct {
	Vendor       int
	Product      int
	DevicePath   string
	ReportLength int
	Strings      map[byte]string
	// Physical groups endpoints of one simulated tablet.
	Physical string

	rawClone atomic.Bool

	mu     sync.RWMutex
	subs   map[int]func([]byte)
	nextID int
}

func (e *MemoryEndpoint) VendorID() int          { return e.Vendor }
func (e *MemoryEndpoint) ProductID() int         { return e.Product }
func (e *MemoryEndpoint) Path() string           { return e.DevicePath }
func (e *MemoryEndpoint) PhysicalID() string     { return e.Physical }
func (e *MemoryEndpoint) InputReportLength() int { return e.ReportLength }
func (e *MemoryEndpoint) RawClone() bool         { return e.rawClone.Load() }
func (e *MemoryEndpoint) SetRawClone(enabled bool) {
	e.rawClone.Store(enabled)
}

func (e *MemoryEndpoint) DeviceString(index byte) (string, error) {
	if s, ok := e.Strings[index]; ok {
		return s, nil
	}
	return "", fmt.Errorf("no string descriptor at index %d", index)
}

func (e *MemoryEndpoint) Subscribe(fn func(data []byte)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[int]func([]byte))
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
		})
	}
}

// Subscribers returns the number of active report subscribers.
func (e *MemoryEndpoint) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Send delivers one raw report to every subscriber.
func (e *MemoryEndpoint) Send(data []byte) {
	e.mu.RLock()
	subs := make([]func([]byte), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.RUnlock()

	for _, fn := range subs {
		fn(data)
	}
}
