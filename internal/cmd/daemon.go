// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/daemon"
	"github.com/dotandev/tabletd/internal/hub"
	"github.com/dotandev/tabletd/internal/journal"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/plugin"
	"github.com/dotandev/tabletd/internal/shutdown"
	"github.com/dotandev/tabletd/internal/telemetry"
	"github.com/dotandev/tabletd/internal/updater"
	"github.com/spf13/cobra"
)

// journalRetention bounds how long lifecycle events are kept.
const journalRetention = 90 * 24 * time.Hour

var (
	daemonListen    string
	daemonAuthToken string
	daemonTracing   bool
	daemonOTLPURL   string
	daemonSimulate  bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the tablet driver",
	Long: `Run the driver daemon. It detects connected tablets, loads plugins, applies
the saved settings and serves the JSON-RPC 2.0 control surface.

Example:
  tabletd daemon
  tabletd daemon --listen 127.0.0.1:43701 --auth-token secret123
  tabletd daemon --simulate --tracing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("listen") {
			cfg.ListenAddr = daemonListen
		}
		if flags.Changed("auth-token") {
			cfg.AuthToken = daemonAuthToken
		}
		if flags.Changed("tracing") {
			cfg.Tracing = daemonTracing
		}
		if flags.Changed("otlp-url") {
			cfg.OTLPURL = daemonOTLPURL
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Starting tabletd %s on %s\n", Version, cfg.ListenAddr)
		if cfg.AuthToken != "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Authentication: enabled")
		}
		return runDaemon(ctx, cfg, daemonSimulate)
	},
}

// runDaemon wires the daemon from cfg and serves until ctx is done.
// Simulated mode uses an in-memory hub instead of the platform's.
func runDaemon(ctx context.Context, cfg *config.Config, simulate bool) error {
	log := logger.For("Daemon")

	coordinator := shutdown.NewCoordinator()
	setShutdownCoordinator(coordinator)
	defer func() {
		runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
		clearShutdownCoordinator()
	}()

	flush, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Tracing,
		ExporterURL:    cfg.OTLPURL,
		ServiceName:    "tabletd",
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	registerShutdownHook("telemetry", func(context.Context) error {
		flush()
		return nil
	})

	info := cfg.AppInfo()
	if err := info.EnsureDirectories(); err != nil {
		return fmt.Errorf("creating application directories: %w", err)
	}

	var recorder plugin.Recorder
	if j, err := journal.Open(info.JournalFile); err != nil {
		log.Warn("Plugin journal unavailable", "path", info.JournalFile, "error", err)
	} else {
		if n, err := j.Prune(ctx, time.Now().Add(-journalRetention)); err == nil && n > 0 {
			log.Debug("Pruned plugin journal", "entries", n)
		}
		recorder = j
		registerCloser("journal", j)
	}

	var h hub.Hub
	if simulate {
		h = hub.NewMemory()
	} else if h, err = hub.NewPlatform(); err != nil {
		return err
	}
	registerCloser("hub", h)

	var catalog *updater.Checker
	if cfg.RepoBaseURL != "" {
		catalog = updater.NewChecker(cfg.RepoBaseURL, info.CacheDirectory, Version)
	}

	d, err := daemon.New(daemon.Options{
		Info:    info,
		Hub:     h,
		Version: Version,
		Journal: recorder,
		Catalog: catalog,
		Crash:   crashReporter,
	})
	if err != nil {
		return err
	}
	d.Start()
	registerShutdownHook("daemon", d.Close)

	if err := d.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing driver: %w", err)
	}
	return daemon.NewServer(d, cfg.AuthToken).Start(ctx, cfg.ListenAddr)
}

func init() {
	daemonCmd.Flags().StringVarP(&daemonListen, "listen", "l", "", "Address for the control surface (default from config)")
	daemonCmd.Flags().StringVar(&daemonAuthToken, "auth-token", "", "Authentication token for API access")
	daemonCmd.Flags().BoolVar(&daemonTracing, "tracing", false, "Enable OpenTelemetry tracing")
	daemonCmd.Flags().StringVar(&daemonOTLPURL, "otlp-url", "", "OTLP exporter URL")
	daemonCmd.Flags().BoolVar(&daemonSimulate, "simulate", false, "Use an in-memory device hub instead of the platform's")

	rootCmd.AddCommand(daemonCmd)
}
