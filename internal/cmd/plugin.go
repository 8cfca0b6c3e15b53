// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/daemon"
	"github.com/spf13/cobra"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage driver plugins",
	Long: `Install, remove and inspect the plugins loaded by the running daemon.

Examples:
  tabletd plugin list
  tabletd plugin install ./Smoothing.zip
  tabletd plugin download "Pressure Tools"
  tabletd plugin types filter`,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.PluginsReply
		if err := call(cmd.Context(), "GetPlugins", &daemon.Empty{}, &reply); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(reply.Plugins) == 0 {
			fmt.Fprintln(out, "No plugins installed")
			return nil
		}
		for _, p := range reply.Plugins {
			version := p.Version
			if version == "" {
				version = "-"
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", p.FriendlyName, version, strings.Join(p.Types, ", "))
		}
		return nil
	},
}

var pluginLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load plugin directories added since the daemon started",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), "LoadPlugins", &daemon.Empty{}, &daemon.Empty{})
	},
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install <archive>",
	Short: "Install a .zip archive or a single module file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		var reply daemon.ResultReply
		if err := call(cmd.Context(), "InstallPlugin", &daemon.InstallArgs{Path: path}, &reply); err != nil {
			return err
		}
		return report(cmd, reply.OK, "Installed", path)
	},
}

var pluginUninstallCmd = &cobra.Command{
	Use:   "uninstall <directory>",
	Short: "Move a plugin to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.ResultReply
		if err := call(cmd.Context(), "UninstallPlugin", &daemon.UninstallArgs{Directory: args[0]}, &reply); err != nil {
			return err
		}
		return report(cmd, reply.OK, "Uninstalled", args[0])
	},
}

var pluginDownloadCmd = &cobra.Command{
	Use:   "download <name>",
	Short: "Download and install the newest compatible release from the repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.ResultReply
		if err := call(cmd.Context(), "DownloadPlugin", &daemon.DownloadArgs{Name: args[0]}, &reply); err != nil {
			return err
		}
		return report(cmd, reply.OK, "Downloaded", args[0])
	},
}

var pluginUpdatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "List installed plugins with newer compatible releases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.UpdatesReply
		if err := call(cmd.Context(), "CheckPluginUpdates", &daemon.Empty{}, &reply); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(reply.Updates) == 0 {
			fmt.Fprintln(out, "All plugins are up to date")
			return nil
		}
		for _, u := range reply.Updates {
			fmt.Fprintf(out, "%s\t%s -> %s\n", u.Directory, u.Installed.PluginVersion, u.Available.PluginVersion)
		}
		return nil
	},
}

var pluginTypesCmd = &cobra.Command{
	Use:       "types <category>",
	Short:     "List the component types of a category",
	ValidArgs: categoryNames(),
	Args:      cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.TypesReply
		if err := call(cmd.Context(), "GetMatchingTypes", &daemon.TypesArgs{Category: component.Category(args[0])}, &reply); err != nil {
			return err
		}
		for _, e := range reply.Types {
			owner := e.Plugin
			if owner == "" {
				owner = "built-in"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Path, e.Name(), owner)
		}
		return nil
	},
}

var pluginDefaultsCmd = &cobra.Command{
	Use:   "defaults <type>",
	Short: "Print the default settings of a component type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reply daemon.DefaultsReply
		if err := call(cmd.Context(), "GetDefaults", &daemon.DefaultsArgs{Path: args[0]}, &reply); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), reply.Store)
	},
}

func categoryNames() []string {
	var out []string
	for _, c := range component.Categories() {
		out = append(out, string(c))
	}
	return out
}

func report(cmd *cobra.Command, ok bool, verb, subject string) error {
	if !ok {
		return fmt.Errorf("%s: nothing changed", subject)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, subject)
	return nil
}

func init() {
	pluginCmd.AddCommand(
		pluginListCmd,
		pluginLoadCmd,
		pluginInstallCmd,
		pluginUninstallCmd,
		pluginDownloadCmd,
		pluginUpdatesCmd,
		pluginTypesCmd,
		pluginDefaultsCmd,
	)
	addClientFlags(pluginCmd)
	rootCmd.AddCommand(pluginCmd)
}
