// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"log/slog"
	"sync"
	"time"
)

// Message is a retained log record as exposed to the control surface.
type Message struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Group   string            `json:"group,omitempty"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// HistoryBuffer is a bounded ring of recent log messages.
type HistoryBuffer struct {
	mu    sync.RWMutex
	size  int
	items []Message
	next  int
	full  bool
}

func NewHistory(size int) *HistoryBuffer {
	if size <= 0 {
		size = HistorySize
	}
	return &HistoryBuffer{
		size:  size,
		items: make([]Message, size),
	}
}

func (b *HistoryBuffer) add(record slog.Record, attrs []slog.Attr) {
	msg := Message{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
	}

	collect := func(a slog.Attr) bool {
		if a.Key == "group" {
			msg.Group = a.Value.String()
			return true
		}
		if msg.Attrs == nil {
			msg.Attrs = make(map[string]string)
		}
		msg.Attrs[a.Key] = a.Value.String()
		return true
	}
	for _, a := range attrs {
		collect(a)
	}
	record.Attrs(collect)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.next] = msg
	b.next = (b.next + 1) % b.size
	if b.next == 0 {
		b.full = true
	}
}

// Messages returns retained messages, oldest first.
func (b *HistoryBuffer) Messages() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		out := make([]Message, b.next)
		copy(out, b.items[:b.next])
		return out
	}

	out := make([]Message, 0, b.size)
	out = append(out, b.items[b.next:]...)
	out = append(out, b.items[:b.next]...)
	return out
}

// Len reports the number of retained messages.
func (b *HistoryBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return b.size
	}
	return b.next
}
