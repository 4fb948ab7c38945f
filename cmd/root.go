// Package cmd implements the storefront command tree.
package cmd

import (
	"os"
	"strings"

	"github.com/grovetools/storefront/cli"
	"github.com/grovetools/storefront/config"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/pkg/directory"
	"github.com/grovetools/storefront/pkg/storeapi"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the storefront command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"storefront",
		"Provision and watch e-commerce stores on the orchestration service",
	)
	root.PersistentFlags().String("session-token", "", "Session token to authenticate with (use - to read it from the terminal)")
	root.PersistentFlags().String("base-url", "", "Orchestration service URL (overrides api.base_url)")

	root.AddCommand(NewStoresCmd())
	root.AddCommand(NewDashboardCmd())
	root.AddCommand(NewMockServerCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewLogCmd())
	root.AddCommand(cli.NewVersionCommand("storefront"))

	cli.ApplyStyledHelpRecursive(root)
	return root
}

// loadConfig loads configuration and applies the connection flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}

	token, _ := cmd.Flags().GetString("session-token")
	if token == "-" {
		token, err = cli.ReadSecret(os.Stdin, cmd.ErrOrStderr(), "Session token: ")
		if err != nil {
			return nil, err
		}
	}
	if token = strings.TrimSpace(token); token != "" {
		cfg.Session.Token = token
	}
	return cfg, nil
}

// newClient creates a client for the configured orchestration service.
func newClient(cfg *config.Config) (*storeapi.RemoteClient, error) {
	return storeapi.NewRemoteClient(cfg.API.BaseURL, authFor(cfg),
		storeapi.WithTimeout(cfg.API.Timeout.Std()),
		storeapi.WithHandshakeTimeout(cfg.Stream.HandshakeTimeout.Std()),
		storeapi.WithReadLimit(cfg.Stream.ReadLimit),
		storeapi.WithLogger(logging.NewLogger("storeapi")),
	)
}

func authFor(cfg *config.Config) storeapi.Auth {
	return storeapi.Auth{
		CookieName: cfg.Session.CookieName,
		Token:      cfg.Session.Token,
	}
}

// newSynchronizer wires a synchronizer to a fresh directory.
func newSynchronizer(client storeapi.Client) *directory.Synchronizer {
	return directory.NewSynchronizer(client, directory.New(),
		directory.WithLogger(logging.NewLogger("directory")))
}
