package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSubscribersCommand() *cobra.Command {
	var opts sessionOptions
	cmd := &cobra.Command{
		Use:   "subscribers",
		Short: "List the selected website's subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribers(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Website name (defaults to the first tenant)")
	return cmd
}

func runSubscribers(cmd *cobra.Command, opts sessionOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := startSession(ctx, opts)
	if err != nil {
		return err
	}

	subs, err := s.ctrl.FetchSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("fetch subscribers: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(subs) == 0 {
		fmt.Fprintln(out, "No subscribers")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS")
	for _, sub := range subs {
		fmt.Fprintf(tw, "%s\t%s\n", sub.ID, sub.SubscriptionStatus)
	}
	return tw.Flush()
}
