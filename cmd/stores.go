package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/grovetools/storefront/cli"
	"github.com/grovetools/storefront/config"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/pkg/directory"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/provision"
	"github.com/grovetools/storefront/pkg/storeapi"
	"github.com/grovetools/storefront/pkg/viewer"
	"github.com/grovetools/storefront/tui/components/table"
	"github.com/grovetools/storefront/tui/theme"
	"github.com/spf13/cobra"
)

// NewStoresCmd creates the `stores` command group.
func NewStoresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List, create and follow stores",
	}
	cmd.AddCommand(newStoresListCmd())
	cmd.AddCommand(newStoresCreateCmd())
	cmd.AddCommand(newStoresLogsCmd())
	return cmd
}

func newStoresListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the stores owned by the current session",
		Long: `Fetches the store list from the orchestration service and prints it.

Examples:
  # All stores
  storefront stores list

  # Stores whose name starts with "shop-"
  storefront stores list --match 'shop-*'`,
		Args: cobra.NoArgs,
		RunE: runStoresList,
	}
	cmd.Flags().StringSliceP("match", "m", nil, "Only show stores whose name matches the pattern (repeatable)")
	return cmd
}

func runStoresList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	syncer := newSynchronizer(client)
	stores, err := syncer.ListStores(cmd.Context())
	if err != nil {
		return err
	}
	if patterns, _ := cmd.Flags().GetStringSlice("match"); len(patterns) > 0 {
		if stores, err = syncer.Directory().Match(patterns...); err != nil {
			return err
		}
	}

	return printStores(cmd.OutOrStdout(), stores, cli.GetOptions(cmd).JSONOutput)
}

func printStores(w io.Writer, stores []models.Store, asJSON bool) error {
	if asJSON {
		redacted := make([]models.Store, 0, len(stores))
		for _, s := range stores {
			redacted = append(redacted, s.Redacted())
		}
		return writeJSON(w, redacted)
	}
	if len(stores) == 0 {
		fmt.Fprintln(w, "No stores found.")
		return nil
	}
	fmt.Fprintln(w, table.RenderStores(theme.DefaultTheme, stores))
	return nil
}

func newStoresCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a store and optionally follow its provisioning log",
		Long: `Requests a new store. Names may contain only lowercase letters, digits
and hyphens.

With --follow the provisioning log is streamed until the job ends, and the
admin credentials are printed once the store is ready.`,
		Args: cobra.ExactArgs(1),
		RunE: runStoresCreate,
	}
	cmd.Flags().BoolP("follow", "f", false, "Stream the provisioning log until the job ends")
	return cmd
}

func runStoresCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	syncer := newSynchronizer(client)
	store, err := syncer.CreateStore(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	follow, _ := cmd.Flags().GetBool("follow")
	if cli.GetOptions(cmd).JSONOutput && !follow {
		return writeJSON(out, store.Redacted())
	}

	pretty := logging.NewPrettyLogger().WithWriter(out)
	pretty.Success(fmt.Sprintf("Created store %s", store.Name))
	pretty.Field("id", store.ID)
	pretty.Field("status", store.Status)

	if !follow {
		return nil
	}
	pretty.Blank()
	return followSession(cmd.Context(), out, cfg, client, syncer, store.ID, store.Name)
}

func newStoresLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs STORE_ID",
		Short: "Follow the provisioning log of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = args[0]
			}
			return followSession(cmd.Context(), cmd.OutOrStdout(), cfg, client, newSynchronizer(client), args[0], name)
		},
	}
	cmd.Flags().String("name", "", "Store name to show in output")
	return cmd
}

// followSession prints a store's provisioning log until the session ends,
// then its outcome and, when delivered, the admin credentials.
func followSession(ctx context.Context, w io.Writer, cfg *config.Config, client storeapi.Client, syncer *directory.Synchronizer, storeID, storeName string) error {
	pretty := logging.NewPrettyLogger().WithWriter(w)

	var mu sync.Mutex
	printed := 0
	listener := viewer.ListenerFunc(func(s *provision.Session) {
		mu.Lock()
		defer mu.Unlock()
		lines := s.Lines()
		for _, line := range lines[printed:] {
			pretty.LogLine(line)
		}
		printed = len(lines)
	})

	v := viewer.New(client, syncer,
		viewer.WithCredentialGrace(cfg.Stream.CredentialGrace.Std()),
		viewer.WithListener(listener),
		viewer.WithLogger(logging.NewLogger("viewer")),
	)
	defer v.Shutdown()

	session, err := v.Open(ctx, storeID, storeName)
	if err != nil {
		if session != nil {
			listener.SessionUpdated(session)
		}
		return err
	}

	select {
	case <-v.Done():
	case <-ctx.Done():
		v.Close()
		return ctx.Err()
	}
	// Lines appended between the last notification and release.
	listener.SessionUpdated(session)

	pretty.Divider()
	return reportSession(pretty, session)
}

func reportSession(pretty *logging.PrettyLogger, s *provision.Session) error {
	switch s.State() {
	case provision.StateComplete:
		pretty.Success(fmt.Sprintf("Store %s is ready", s.StoreName()))
		if creds, ok := s.Credentials(); ok {
			pretty.Field("url", creds.URL)
			pretty.Field("admin user", creds.AdminUser)
			if creds.AdminPassword != "" {
				pretty.SecretField("admin password", creds.AdminPassword)
			}
		} else {
			pretty.WarnPretty("No credentials were delivered; run `storefront stores list` once the store is READY")
		}
		return nil
	case provision.StateFailed:
		err := fmt.Errorf("provisioning of %s failed", s.StoreName())
		pretty.ErrorPretty("Provisioning failed", nil)
		return err
	}
	if s.Disconnected() {
		pretty.WarnPretty("Log stream closed before provisioning finished")
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
