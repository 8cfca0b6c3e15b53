// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/crashreport"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/spf13/cobra"
)

// Global flag variables
var (
	ConfigFlag   string
	LogLevelFlag string
)

var (
	cfg           *config.Config
	crashReporter *crashreport.Reporter
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tabletd",
	Short: "User-space graphics tablet driver daemon",
	Long: `tabletd detects graphics tablets, decodes their reports and turns pen
input into cursor movement, mouse buttons and key presses.

The daemon owns the devices; every other command talks to a running daemon
over its JSON-RPC control surface.

Examples:
  tabletd daemon                          Run the driver
  tabletd tablets --detect                Re-scan and list detected tablets
  tabletd plugin install ./Filter.zip     Install a plugin archive
  tabletd preset apply drawing            Switch to a saved preset
  tabletd journal --plugin Filter         Show a plugin's lifecycle history`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := ConfigFlag
		if path == "" {
			path = config.GetConfigPath()
		}
		loaded, err := config.LoadFrom(path)
		if err != nil {
			return err
		}
		if LogLevelFlag != "" {
			loaded.LogLevel = LogLevelFlag
		}
		logger.SetLevel(logger.ParseLevel(loaded.LogLevel))
		if loaded.LogJSON {
			logger.SetOutput(os.Stderr, true)
		}
		cfg = loaded
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetCrashReporter hands the process-wide reporter to the daemon command.
func SetCrashReporter(r *crashreport.Reporter) {
	crashReporter = r
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&ConfigFlag,
		"config",
		"",
		"Path to tabletd.toml (default is the user config directory)",
	)

	rootCmd.PersistentFlags().StringVar(
		&LogLevelFlag,
		"log-level",
		"",
		"Log level: debug, info, warn or error",
	)
}
