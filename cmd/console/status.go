package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var opts sessionOptions
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server health and the push lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Website name (defaults to the first tenant)")
	cmd.Flags().StringVar(&opts.appID, "app-id", "", "SDK app id (defaults to ONESIGNAL_DEFAULT_APP_ID, then the first tenant's)")
	return cmd
}

func runStatus(cmd *cobra.Command, opts sessionOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return err
	}

	s, err := startSession(ctx, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]any{
		"server":    health,
		"lifecycle": s.ctrl.Snapshot(),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
