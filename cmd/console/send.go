package main

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/pushconsole/internal/lifecycle"
	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	var (
		opts  sessionOptions
		draft lifecycle.NotificationDraft
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a test notification to the selected website",
		Long:  "Send a push notification to every subscriber in the selected website's segment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts, draft)
		},
	}
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Website name (defaults to the first tenant)")
	cmd.Flags().StringVar(&draft.Title, "title", "", "Notification title")
	cmd.Flags().StringVar(&draft.Body, "message", "", "Notification body")
	return cmd
}

func runSend(cmd *cobra.Command, opts sessionOptions, draft lifecycle.NotificationDraft) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := startSession(ctx, opts)
	if err != nil {
		return err
	}

	res, err := s.ctrl.SendTestNotification(ctx, draft)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Notification %s sent to %d recipient(s)\n", res.ID, res.Recipients)
	return nil
}
