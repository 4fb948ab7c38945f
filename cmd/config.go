package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/storefront/cli"
	"github.com/grovetools/storefront/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect storefront configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Long: `Prints the configuration after merging the global and project files,
expanding environment variables and applying defaults. The session token
is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(out, redacted)
			}
			if path := configPath(cmd); path != "" {
				fmt.Fprintf(out, "# Source: %s\n", path)
			}
			data, err := yaml.Marshal(redacted)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for storefront.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			var pretty json.RawMessage = schema
			return writeJSON(cmd.OutOrStdout(), pretty)
		},
	}
}
