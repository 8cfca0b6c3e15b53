// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"io"
	"sync"

	"github.com/dotandev/tabletd/internal/tablet/report"
)

// OutputMode is the terminal stage of a device pipeline. It owns the chain
// of elements assigned to it and releases them on Close.
type OutputMode interface {
	Elements() []Element
	SetElements(elements []Element)
	Read(r report.Report)
	Close() error
}

// Pointer receives the final output of an output mode.
type Pointer interface {
	MoveTo(pos report.Vector2, pressure uint32)
}

// Pipeline is the per-device unit swapped atomically on reconfiguration.
type Pipeline struct {
	Output   OutputMode
	Bindings io.Closer
}

// Close releases the output mode (and with it the element chain) followed
// by the binding handler.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Output != nil {
		if err := p.Output.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.Bindings != nil {
		if err := p.Bindings.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Chain is a reusable OutputMode base holding the element list. Output
// modes embed it and supply Transform.
type Chain struct {
	mu       sync.RWMutex
	elements []Element
	pre      []Element
	post     []Element
}

func (c *Chain) Elements() []Element {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Element, len(c.elements))
	copy(out, c.elements)
	return out
}

// SetElements replaces the chain. Elements are ordered by position.
func (c *Chain) SetElements(elements []Element) {
	sorted := SortByPosition(elements)
	pre, post := Split(sorted)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.elements = sorted
	c.pre = pre
	c.post = post
}

// Process runs r through pre elements, transform, then post elements.
func (c *Chain) Process(r report.Report, transform func(report.Report) report.Report) report.Report {
	c.mu.RLock()
	pre, post := c.pre, c.post
	c.mu.RUnlock()

	r = Run(pre, r)
	if transform != nil {
		r = transform(r)
	}
	return Run(post, r)
}

// Close releases every element in chain order and clears the chain.
func (c *Chain) Close() error {
	c.mu.Lock()
	elements := c.elements
	c.elements, c.pre, c.post = nil, nil, nil
	c.mu.Unlock()
	return CloseAll(elements)
}
