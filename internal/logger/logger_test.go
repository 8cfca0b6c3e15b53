// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestHistoryCapturesGroupAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, true)
	defer SetOutput(nil, false)

	before := History.Len()
	For("Plugin").Info("Installing plugin", "name", "smoothing")

	msgs := History.Messages()
	require.Greater(t, len(msgs), 0)
	if before < HistorySize {
		assert.Equal(t, before+1, History.Len())
	}

	last := msgs[len(msgs)-1]
	assert.Equal(t, "Plugin", last.Group)
	assert.Equal(t, "Installing plugin", last.Message)
	assert.Equal(t, "smoothing", last.Attrs["name"])
	assert.Equal(t, "INFO", last.Level)
	assert.Contains(t, buf.String(), "Installing plugin")
}

func TestHistoryBufferWrapsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	handler := &historyHandler{next: slog.NewTextHandler(&bytes.Buffer{}, nil), history: h}
	l := slog.New(handler)

	for _, m := range []string{"one", "two", "three", "four"} {
		l.Info(m)
	}

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "two", msgs[0].Message)
	assert.Equal(t, "four", msgs[2].Message)
}

func TestSetLevelFiltersHistory(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false)
	defer SetOutput(nil, false)

	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	Logger.Info("hidden message")
	assert.NotContains(t, buf.String(), "hidden message")
}
