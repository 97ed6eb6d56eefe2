package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTenantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List configured websites",
		Long:  "List the websites (tenants) the server routes notifications for",
		Args:  cobra.NoArgs,
		RunE:  runTenants,
	}
}

func runTenants(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	tenants, err := client.Tenants(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tAPP ID")
	for _, t := range tenants {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.ExternalAppID)
	}
	return tw.Flush()
}
