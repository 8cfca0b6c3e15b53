// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"log/slog"
	"sync"

	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/tablet/report"
)

// Input is the virtual input device output modes and bindings drive.
// Platform injection backends implement it.
type Input interface {
	MoveTo(pos report.Vector2, pressure uint32)
	MoveBy(delta report.Vector2)
	Button(name string, down bool)
	Key(name string, down bool)
}

// LogInput writes every action to the debug log. It is the default when
// no injection backend is available.
type LogInput struct {
	once sync.Once
	log  *slog.Logger
}

func (l *LogInput) logger() *slog.Logger {
	l.once.Do(func() { l.log = logger.For("Input") })
	return l.log
}

func (l *LogInput) MoveTo(pos report.Vector2, pressure uint32) {
	l.logger().Debug("Move", "x", pos.X, "y", pos.Y, "pressure", pressure)
}

func (l *LogInput) MoveBy(delta report.Vector2) {
	l.logger().Debug("Move by", "dx", delta.X, "dy", delta.Y)
}

func (l *LogInput) Button(name string, down bool) {
	l.logger().Debug("Button", "button", name, "down", down)
}

func (l *LogInput) Key(name string, down bool) {
	l.logger().Debug("Key", "key", name, "down", down)
}
