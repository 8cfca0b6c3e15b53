// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	idle          = "idle"
	detecting     = "detecting"
	reconfiguring = "reconfiguring"
	active        = "active"
)

const (
	StateIdle          State = idle
	StateDetecting     State = detecting
	StateReconfiguring State = reconfiguring
	StateActive        State = active
)

// Orchestrator events.
const (
	eventDetect      = "DETECT"
	eventDetected    = "DETECTED"
	eventReconfigure = "RECONFIGURE"
	eventApplied     = "APPLIED"
	eventStop        = "STOP"
)

// Transitions counts completed entries into the working states.
type Transitions struct {
	Detections     int64     `json:"detections"`
	Configurations int64     `json:"configurations"`
	LastChange     time.Time `json:"lastChange"`
}

type counters struct {
	detections     atomic.Int64
	configurations atomic.Int64
	lastChange     atomic.Int64
}

// lifecycle wraps the statekit interpreter. Events only move the state;
// the control loop does the work.
type lifecycle struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[Transitions]
	counts *counters
}

func newLifecycle() (*lifecycle, error) {
	counts := &counters{}
	machine, err := statekit.NewMachine[Transitions]("tabletd-session").
		WithInitial(idle).
		WithContext(Transitions{}).
		WithAction("countDetection", func(_ *Transitions, _ statekit.Event) {
			counts.detections.Add(1)
			counts.lastChange.Store(time.Now().UnixNano())
		}).
		WithAction("countConfiguration", func(_ *Transitions, _ statekit.Event) {
			counts.configurations.Add(1)
			counts.lastChange.Store(time.Now().UnixNano())
		}).
		State(idle).
		On(eventDetect).Target(detecting).
		On(eventReconfigure).Target(reconfiguring).Done().
		State(detecting).
		OnEntry("countDetection").
		On(eventDetected).Target(active).
		On(eventReconfigure).Target(reconfiguring).
		On(eventStop).Target(idle).Done().
		State(reconfiguring).
		OnEntry("countConfiguration").
		On(eventApplied).Target(active).
		On(eventDetect).Target(detecting).
		On(eventStop).Target(idle).Done().
		State(active).
		On(eventDetect).Target(detecting).
		On(eventReconfigure).Target(reconfiguring).
		On(eventStop).Target(idle).Done().
		Build()
	if err != nil {
		return nil, err
	}

	l := &lifecycle{interp: statekit.NewInterpreter(machine), counts: counts}
	l.interp.Start()
	return l, nil
}

func (l *lifecycle) send(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.interp != nil {
		l.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	}
}

func (l *lifecycle) state() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.interp == nil {
		return StateIdle
	}
	return State(l.interp.State().Value)
}

func (l *lifecycle) transitions() Transitions {
	t := Transitions{
		Detections:     l.counts.detections.Load(),
		Configurations: l.counts.configurations.Load(),
	}
	if ns := l.counts.lastChange.Load(); ns != 0 {
		t.LastChange = time.Unix(0, ns)
	}
	return t
}

func (l *lifecycle) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.interp != nil {
		l.interp.Send(statekit.Event{Type: eventStop})
		l.interp.Stop()
		l.interp = nil
	}
}
