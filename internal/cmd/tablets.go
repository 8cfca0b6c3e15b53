// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/dotandev/tabletd/internal/daemon"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tabletsDetect bool

var tabletsCmd = &cobra.Command{
	Use:   "tablets",
	Short: "List detected tablets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		method := "GetTablets"
		if tabletsDetect {
			method = "DetectTablets"
		}
		var reply daemon.TabletsReply
		if err := call(cmd.Context(), method, &daemon.Empty{}, &reply); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(reply.Tablets) == 0 {
			fmt.Fprintln(out, "No tablets detected")
			return nil
		}
		for _, t := range reply.Tablets {
			d := t.Specifications.Digitizer
			fmt.Fprintf(out, "%s\t%gx%gmm\t%d pressure levels\n", t.Name, d.Width, d.Height, t.Specifications.Pen.MaxPressure+1)
		}
		return nil
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug [on|off]",
	Short: "Toggle raw report forwarding or print forwarded reports",
	Long: `With an argument, turn tablet debugging on or off. Without one, print the
most recent debug reports the daemon retained.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			var reply daemon.DebugReportsReply
			if err := call(cmd.Context(), "GetDebugReports", &daemon.Empty{}, &reply); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reply.Reports)
		}
		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		return call(cmd.Context(), "SetTabletDebug", &daemon.DebugArgs{Enabled: enabled}, &daemon.Empty{})
	},
}

var deviceStringCmd = &cobra.Command{
	Use:   "device-string <vendor-id> <product-id> <index>",
	Short: "Read a USB string descriptor from a connected device",
	Example: `  tabletd device-string 0x056a 0x030e 2`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		vid, err := strconv.ParseInt(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid vendor id: %w", err)
		}
		pid, err := strconv.ParseInt(args[1], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid product id: %w", err)
		}
		index, err := strconv.ParseUint(args[2], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid string index: %w", err)
		}

		var reply daemon.DeviceStringReply
		err = call(cmd.Context(), "RequestDeviceString", &daemon.DeviceStringArgs{
			VendorID:  int(vid),
			ProductID: int(pid),
			Index:     byte(index),
		}, &reply)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Value)
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print the daemon's recent log messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.LogReply
		if err := call(cmd.Context(), "GetCurrentLog", &daemon.Empty{}, &reply); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range reply.Messages {
			level := levelColor(m.Level).Sprintf("%-5s", m.Level)
			if m.Group != "" {
				fmt.Fprintf(out, "%s %s %s: %s\n", m.Time.Format("15:04:05"), level, m.Group, m.Message)
			} else {
				fmt.Fprintf(out, "%s %s %s\n", m.Time.Format("15:04:05"), level, m.Message)
			}
		}
		return nil
	},
}

func levelColor(level string) *color.Color {
	switch level {
	case "ERROR":
		return color.New(color.FgRed, color.Bold)
	case "WARN":
		return color.New(color.FgYellow)
	case "DEBUG":
		return color.New(color.Faint)
	default:
		return color.New(color.Reset)
	}
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Print a diagnostic snapshot of the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.Diagnostics
		if err := call(cmd.Context(), "GetDiagnostics", &daemon.Empty{}, &reply); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), reply)
	},
}

func init() {
	tabletsCmd.Flags().BoolVar(&tabletsDetect, "detect", false, "Re-scan devices before listing")

	for _, c := range []*cobra.Command{tabletsCmd, debugCmd, deviceStringCmd, logCmd, diagnosticsCmd} {
		addClientFlags(c)
		rootCmd.AddCommand(c)
	}
}
