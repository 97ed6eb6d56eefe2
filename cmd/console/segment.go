package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSegmentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Manage website segments",
	}
	cmd.AddCommand(newSegmentCreateCommand())
	return cmd
}

func newSegmentCreateCommand() *cobra.Command {
	var opts sessionOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the selected website's segment",
		Long:  "Create a segment matching devices tagged with the selected website",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSegmentCreate(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Website name (defaults to the first tenant)")
	return cmd
}

func runSegmentCreate(cmd *cobra.Command, opts sessionOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := startSession(ctx, opts)
	if err != nil {
		return err
	}

	res, err := s.ctrl.CreateSegment(ctx)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}

	tenant := s.ctrl.Snapshot().SelectedTenant
	fmt.Fprintf(cmd.OutOrStdout(), "Segment created for %s (id %s)\n", tenant.Name, res.ID)
	return nil
}
