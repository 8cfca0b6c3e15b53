// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	stderrors "errors"
)

const InterruptExitCode = 130

// IsCancellation reports whether err stems from the command's context
// being cancelled, typically by SIGINT.
func IsCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled)
}
