// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package commands provides the dispatchlink CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

// Build information set at link time with -ldflags "-X".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Global flags
var (
	configPath string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "dispatchlink",
	Short: "Realtime event client for the IPTV admin server",
	Long: `dispatchlink keeps a live connection to an IPTV admin server, applies
pushed entity updates to a local cache and shows task progress and server
notifications as console toasts.

Configuration is read from dispatchlink.yaml (or CONFIG_PATH) and the
environment; see 'dispatchlink run --help'.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search CONFIG_PATH, ./dispatchlink.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
