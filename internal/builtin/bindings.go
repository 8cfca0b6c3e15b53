// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"fmt"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/tablet/report"
)

// Mouse button names accepted by MouseBinding.
const (
	MouseLeft   = "left"
	MouseRight  = "right"
	MouseMiddle = "middle"
)

// MouseBinding presses a virtual mouse button.
type MouseBinding struct {
	Button string `json:"button"`
	out    Input
}

func newMouseBinding(args component.Args, out Input) (*MouseBinding, error) {
	b := &MouseBinding{Button: MouseLeft, out: out}
	if err := args.Settings.Bind(b); err != nil {
		return nil, err
	}
	switch b.Button {
	case MouseLeft, MouseRight, MouseMiddle:
	default:
		return nil, fmt.Errorf("unknown mouse button %q", b.Button)
	}
	return b, nil
}

func (b *MouseBinding) Press(string, report.Report)   { b.out.Button(b.Button, true) }
func (b *MouseBinding) Release(string, report.Report) { b.out.Button(b.Button, false) }

// KeyBinding presses a virtual keyboard key.
type KeyBinding struct {
	Key string `json:"key"`
	out Input
}

func newKeyBinding(args component.Args, out Input) (*KeyBinding, error) {
	b := &KeyBinding{out: out}
	if err := args.Settings.Bind(b); err != nil {
		return nil, err
	}
	if b.Key == "" {
		return nil, fmt.Errorf("key binding has no key")
	}
	return b, nil
}

func (b *KeyBinding) Press(string, report.Report)   { b.out.Key(b.Key, true) }
func (b *KeyBinding) Release(string, report.Report) { b.out.Key(b.Key, false) }
