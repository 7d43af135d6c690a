// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/dispatchlink/internal/router"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the event types the client handles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := router.New(nil, nil, nil)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EVENT\tCATEGORY")
		for _, t := range r.Types() {
			cat, _ := r.CategoryOf(t)
			fmt.Fprintf(tw, "%s\t%s\n", t, cat)
		}
		return tw.Flush()
	},
}
