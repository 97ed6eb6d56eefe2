package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent gateway dispatches",
		Long:  "Show the server's audit log of gateway invocations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	dispatches, err := client.Dispatches(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tWEBSITE\tOUTCOME\tERROR")
	for _, d := range dispatches {
		msg := ""
		if d.ErrorMessage != nil {
			msg = *d.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.CreatedAt.Local().Format(time.DateTime), d.Action, d.WebsiteName, d.Outcome, msg)
	}
	return tw.Flush()
}
