// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/dotandev/tabletd/internal/daemon"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/spf13/cobra"
)

var settingsPersist bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and replace the active settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the active settings as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.SettingsReply
		if err := call(cmd.Context(), "GetSettings", &daemon.Empty{}, &reply); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), reply.Settings)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Apply settings from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		s, err := settings.Decode(data, args[0])
		if err != nil {
			return err
		}
		return call(cmd.Context(), "SetSettings", &daemon.SetSettingsArgs{Settings: s, Persist: settingsPersist}, &daemon.Empty{})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Apply the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), "ResetSettings", &daemon.Empty{}, &daemon.Empty{})
	},
}

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage saved settings presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.PresetsReply
		if err := call(cmd.Context(), "GetPresets", &daemon.Empty{}, &reply); err != nil {
			return err
		}
		for _, name := range reply.Presets {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var presetApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Apply a saved preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), "SetPreset", &daemon.PresetArgs{Name: args[0]}, &daemon.Empty{})
	},
}

var presetSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the active settings as a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), "SavePreset", &daemon.PresetArgs{Name: args[0]}, &daemon.Empty{})
	},
}

func init() {
	settingsSetCmd.Flags().BoolVar(&settingsPersist, "persist", false, "Also write the settings file")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsResetCmd)
	presetCmd.AddCommand(presetListCmd, presetApplyCmd, presetSaveCmd)
	for _, c := range []*cobra.Command{settingsCmd, presetCmd} {
		addClientFlags(c)
		rootCmd.AddCommand(c)
	}
}
