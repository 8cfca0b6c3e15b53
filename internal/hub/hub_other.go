// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package hub

import (
	"runtime"

	"github.com/dotandev/tabletd/internal/errors"
)

// NewPlatform returns the hub for the running platform. Only Linux has a
// device backend.
func NewPlatform() (Hub, error) {
	return nil, errors.WrapPlatformUnsupported(runtime.GOOS)
}
