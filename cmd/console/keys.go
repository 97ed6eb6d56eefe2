package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/pushconsole/internal/api/middleware"
	"github.com/kiranshivaraju/pushconsole/internal/store"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
	"github.com/spf13/cobra"
)

// openStore is replaced in tests.
var openStore = func(ctx context.Context) (store.Store, func(), error) {
	if !cfg.Database.Enabled() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for key management")
	}
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage server API keys (direct database access)",
	}
	cmd.AddCommand(newKeysCreateCommand())
	cmd.AddCommand(newKeysListCommand())
	cmd.AddCommand(newKeysRevokeCommand())
	return cmd
}

func newKeysCreateCommand() *cobra.Command {
	var (
		name   string
		scopes []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysCreate(cmd, name, scopes)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Key name")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{models.ScopeOperator}, "Scopes (operator, admin)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newKeysListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active API keys",
		Args:  cobra.NoArgs,
		RunE:  runKeysList,
	}
}

func newKeysRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE:  runKeysRevoke,
	}
}

func runKeysCreate(cmd *cobra.Command, name string, scopes []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	for _, s := range scopes {
		if s != models.ScopeOperator && s != models.ScopeAdmin {
			return fmt.Errorf("unknown scope %q", s)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	raw, key, err := mw.GenerateAPIKey(name, scopes)
	if err != nil {
		return err
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created key %s (%s)\n", key.ID, strings.Join(key.Scopes, ","))
	fmt.Fprintf(out, "Key: %s\n", raw)
	fmt.Fprintln(out, "Store it now; it cannot be shown again.")
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tSCOPES\tLAST USED")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			k.ID, k.Name, k.KeyPrefix, strings.Join(k.Scopes, ","), lastUsed)
	}
	return tw.Flush()
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid key id %q", args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := s.RevokeAPIKey(ctx, id); err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Revoked key %s\n", id)
	return nil
}
