// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// HistorySize is the number of records kept for GetCurrentLog.
const HistorySize = 500

var (
	Logger  *slog.Logger
	History = NewHistory(HistorySize)
	level   = new(slog.LevelVar)
	mu      sync.Mutex
)

func init() {
	lvl := ParseLevel(os.Getenv("TABLETD_LOG_LEVEL"))
	initLogger(lvl, os.Stderr, !isTerminal(os.Stderr))
}

// ParseLevel maps a textual level to slog. Unknown values resolve to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func initLogger(lvl slog.Level, w io.Writer, useJSON bool) {
	if w == nil {
		w = os.Stderr
	}

	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(&historyHandler{next: handler, history: History})
}

func SetLevel(lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(lvl)
}

func SetOutput(w io.Writer, useJSON bool) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(level.Level(), w, useJSON)
}

// For returns a logger tagged with the subsystem group, mirroring the
// "group: message" convention of the daemon's log output.
func For(group string) *slog.Logger {
	return Logger.With("group", group)
}

// historyHandler tees every record into the shared History before handing
// it to the real sink.
type historyHandler struct {
	next    slog.Handler
	history *HistoryBuffer
	attrs   []slog.Attr
}

func (h *historyHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h *historyHandler) Handle(ctx context.Context, record slog.Record) error {
	h.history.add(record, h.attrs)
	return h.next.Handle(ctx, record)
}

func (h *historyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &historyHandler{next: h.next.WithAttrs(attrs), history: h.history, attrs: merged}
}

func (h *historyHandler) WithGroup(name string) slog.Handler {
	return &historyHandler{next: h.next.WithGroup(name), history: h.history, attrs: h.attrs}
}
