// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package shutdown tears the daemon down in reverse start-up order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dotandev/tabletd/internal/logger"
)

// Hook releases one subsystem. It should return once ctx is done.
type Hook func(context.Context) error

type entry struct {
	name string
	fn   Hook
}

// Coordinator runs registered hooks once, last registered first. The
// deadline of the context given to Run is split evenly between the hooks
// still to run.
type Coordinator struct {
	log *slog.Logger

	mu    sync.Mutex
	hooks []entry
	ran   bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{log: logger.For("Shutdown")}
}

// Register adds a hook. Hooks registered after Run are ignored.
func (c *Coordinator) Register(name string, fn Hook) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		c.log.Warn("Hook registered after shutdown", "hook", name)
		return
	}
	c.hooks = append(c.hooks, entry{name: name, fn: fn})
}

// Closer registers a Close method as a hook.
func (c *Coordinator) Closer(name string, closer interface{ Close() error }) {
	if closer == nil {
		return
	}
	c.Register(name, func(context.Context) error { return closer.Close() })
}

// Run executes the hooks. Later calls return nil without running anything.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return nil
	}
	c.ran = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		hookCtx, cancel := share(ctx, i+1)
		start := time.Now()
		err := h.fn(hookCtx)
		cancel()

		if err != nil {
			c.log.Warn("Shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		c.log.Debug("Shutdown hook done", "hook", h.name, "elapsed", time.Since(start))
	}
	return errors.Join(errs...)
}

// Done reports whether Run has been called.
func (c *Coordinator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ran
}

func share(ctx context.Context, remaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	left := time.Until(deadline)
	if left <= 0 {
		return context.WithTimeout(ctx, time.Millisecond)
	}
	return context.WithTimeout(ctx, left/time.Duration(remaining))
}
