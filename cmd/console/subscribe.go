package main

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/pushconsole/internal/onesignal"
	"github.com/spf13/cobra"
)

func newSubscribeCommand() *cobra.Command {
	var opts sessionOptions
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe a simulated device to the selected website",
		Long: `Bootstrap a simulated browser, prompt it for notification permission and
tag it with the selected website.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Website name (defaults to the first tenant)")
	cmd.Flags().StringVar(&opts.appID, "app-id", "", "SDK app id (defaults to ONESIGNAL_DEFAULT_APP_ID, then the first tenant's)")
	cmd.Flags().BoolVar(&opts.denyPrompt, "deny", false, "Deny the permission prompt")
	return cmd
}

func runSubscribe(cmd *cobra.Command, opts sessionOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := startSession(ctx, opts)
	if err != nil {
		return err
	}

	if err := s.ctrl.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	out := cmd.OutOrStdout()
	tag, _ := s.device.Tag(onesignal.TagKey)
	fmt.Fprintf(out, "Device %s subscribed\n", s.device.ID)
	fmt.Fprintf(out, "Tag %s=%s\n", onesignal.TagKey, tag)
	return nil
}
