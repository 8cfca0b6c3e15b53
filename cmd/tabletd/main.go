// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/dotandev/tabletd/internal/cmd"
	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/crashreport"
)

// Build-time variables injected via -ldflags.
var version = "dev"

func main() {
	ctx := context.Background()
	cmd.Version = version

	// Load config to determine whether crash reporting is opted in.
	cfg, err := config.Load()
	if err != nil {
		// Non-fatal: the root command reports the config error itself.
		cfg = config.DefaultConfig()
	}

	reporter := crashreport.New(crashreport.Config{
		Enabled:   cfg.CrashReporting,
		SentryDSN: cfg.CrashSentryDSN,
		Endpoint:  cfg.CrashEndpoint,
		Version:   version,
	})
	cmd.SetCrashReporter(reporter)

	// Catch any unrecovered panic, report it, then re-panic.
	defer reporter.HandlePanic(ctx, "tabletd")

	if execErr := cmd.Execute(); execErr != nil {
		if cmd.IsCancellation(execErr) {
			os.Exit(cmd.InterruptExitCode)
		}
		if reporter.Enabled() {
			_ = reporter.Send(ctx, execErr, debug.Stack(), "tabletd")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", execErr)
		os.Exit(1)
	}
}
