// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package pipeline defines the stages a decoded report passes through on
// its way to the output mode.
package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dotandev/tabletd/internal/tablet/report"
)

// Position is the stage at which an element processes reports.
type Position int

const (
	// PreTransform elements see reports in raw digitizer units.
	PreTransform Position = iota
	// PostTransform elements see reports after the output mode maps them
	// to output coordinates.
	PostTransform
)

func (p Position) String() string {
	switch p {
	case PreTransform:
		return "pre-transform"
	case PostTransform:
		return "post-transform"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Element is a report-processing stage. Close releases whatever the element
// holds; it is called exactly once when the pipeline is torn down.
type Element interface {
	Position() Position
	Consume(r report.Report) report.Report
	Close() error
}

// NopCloser can be embedded by elements that hold no resources.
type NopCloser struct{}

func (NopCloser) Close() error { return nil }

// SortByPosition orders elements by Position. Elements sharing a position
// keep their relative order.
func SortByPosition(elements []Element) []Element {
	out := make([]Element, len(elements))
	copy(out, elements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position() < out[j].Position()
	})
	return out
}

// Split partitions a sorted chain around the transform.
func Split(elements []Element) (pre, post []Element) {
	for _, e := range elements {
		if e.Position() == PreTransform {
			pre = append(pre, e)
		} else {
			post = append(post, e)
		}
	}
	return pre, post
}

// Run passes r through each element in order.
func Run(elements []Element, r report.Report) report.Report {
	for _, e := range elements {
		r = e.Consume(r)
	}
	return r
}

// CloseAll releases every element in order. A failing Close does not stop
// the remaining ones; all failures are joined.
func CloseAll(elements []Element) error {
	var errs []error
	for i, e := range elements {
		if e == nil {
			continue
		}
		if err := closeOne(e); err != nil {
			errs = append(errs, fmt.Errorf("element %d (%s): %w", i, Name(e), err))
		}
	}
	return errors.Join(errs...)
}

func closeOne(e Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during close: %v", r)
		}
	}()
	return e.Close()
}

// Named is implemented by elements that want a friendlier log name.
type Named interface {
	Name() string
}

// Name returns the element's display name.
func Name(e any) string {
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e)
}
