// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"time"

	"github.com/dotandev/tabletd/internal/journal"
	"github.com/spf13/cobra"
)

var (
	journalPlugin    string
	journalAction    string
	journalLimit     int
	journalOlderThan time.Duration
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the plugin lifecycle journal",
	Long: `Print recorded plugin loads, installs, updates, removals and downloads,
newest first. The journal is read directly from the app data directory and
does not need a running daemon.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := journal.Open(cfg.AppInfo().JournalFile)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Search(cmd.Context(), journal.Query{
			Plugin: journalPlugin,
			Action: journal.Action(journalAction),
			Limit:  journalLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No journal entries")
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-11s %s", e.Timestamp.Local().Format(time.DateTime), e.Action, e.Plugin)
			if e.Detail != "" {
				line += "  " + e.Detail
			}
			if e.Error != "" {
				line += "  error: " + e.Error
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete journal entries older than a duration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := journal.Open(cfg.AppInfo().JournalFile)
		if err != nil {
			return err
		}
		defer j.Close()

		n, err := j.Prune(cmd.Context(), time.Now().Add(-journalOlderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
		return nil
	},
}

func init() {
	journalCmd.Flags().StringVar(&journalPlugin, "plugin", "", "Only show entries for this plugin")
	journalCmd.Flags().StringVar(&journalAction, "action", "", "Only show entries with this action")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 50, "Maximum number of entries")
	journalPruneCmd.Flags().DurationVar(&journalOlderThan, "older-than", journalRetention, "Age of the entries to delete")

	journalCmd.AddCommand(journalPruneCmd)
	rootCmd.AddCommand(journalCmd)
}
