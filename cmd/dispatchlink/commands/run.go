// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tomtom215/dispatchlink/internal/config"
	"github.com/tomtom215/dispatchlink/internal/eventtap"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/session"
)

var (
	runToken    string
	runTail     bool
	runJSON     bool
	runOps      bool
	runLogLevel string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the server and render live notifications",
	Long: `Connect to the server's realtime endpoint and keep running until
interrupted. Server notifications and task progress are printed as toasts;
entity updates keep the local cache current.

The connection is retried with exponential backoff. When the attempts are
exhausted a persistent error is printed and the client waits for a manual
retry through the ops endpoint (POST /retry) or a restart.

Examples:
  # Token from the environment
  DISPATCH_URL=https://tv.example.com DISPATCH_TOKEN=... dispatchlink run

  # Print every dispatched event as well
  dispatchlink run --tail

  # Machine-readable output with the ops server on
  dispatchlink run --json --ops`,
	Args: cobra.NoArgs,
	RunE: runClient,
}

func init() {
	runCmd.Flags().StringVar(&runToken, "token", "", "Access token (overrides DISPATCH_TOKEN)")
	runCmd.Flags().BoolVar(&runTail, "tail", false, "Print every dispatched event")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print toasts and events as JSON lines")
	runCmd.Flags().BoolVar(&runOps, "ops", false, "Enable the ops HTTP server (overrides OPS_ENABLED)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	if exp, ok := session.TokenExpiry(cfg.Server.Token); ok && !exp.After(time.Now()) {
		return fmt.Errorf("%w at %s", session.ErrTokenExpired, exp.Format(time.RFC3339))
	}

	color.NoColor = color.NoColor || noColor || runJSON
	console := NewConsole(cmd.OutOrStdout(), runJSON)

	var opts AppOptions
	if runTail {
		opts.Tail = func(ev eventtap.Event, category string) { console.Event(ev, category) }
	}
	app, err := NewApp(cfg, console, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}

// applyRunFlags lets explicitly set flags win over file and environment.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("token") {
		cfg.Server.Token = runToken
	}
	if flags.Changed("ops") {
		cfg.Ops.Enabled = runOps
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = runLogLevel
	}
}
