// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/logger"
)

// LogTimer writes a heartbeat to the log at a fixed interval. It is the
// reference tool implementation.
type LogTimer struct {
	// Interval in seconds.
	Interval float64 `json:"interval"`
	Message  string  `json:"message"`

	log  *slog.Logger
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newLogTimer(args component.Args) (*LogTimer, error) {
	t := &LogTimer{Interval: 60, Message: "tabletd is running", log: logger.For("LogTimer")}
	if err := args.Settings.Bind(t); err != nil {
		return nil, err
	}
	if t.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", t.Interval)
	}
	return t, nil
}

func (t *LogTimer) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return fmt.Errorf("log timer already running")
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(time.Duration(t.Interval*float64(time.Second)), t.stop, t.done)
	return nil
}

func (t *LogTimer) run(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.log.Info(t.Message)
		}
	}
}

func (t *LogTimer) Close() error {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}
