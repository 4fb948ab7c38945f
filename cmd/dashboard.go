package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/storefront/cli"
	"github.com/grovetools/storefront/config"
	"github.com/grovetools/storefront/internal/configwatch"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/pkg/metrics"
	"github.com/grovetools/storefront/pkg/viewer"
	"github.com/grovetools/storefront/tui"
	"github.com/grovetools/storefront/tui/dashboard"
	"github.com/grovetools/storefront/tui/keymap"
	"github.com/spf13/cobra"
)

// NewDashboardCmd creates the `dashboard` command.
func NewDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Browse stores and watch provisioning interactively",
		Long: `Opens a full-screen dashboard listing your stores. Select a store to
follow its provisioning log, or press n to create one.

The configuration file is watched while the dashboard runs; a new
session.token takes effect without restarting.`,
		Args: cobra.NoArgs,
		RunE: runDashboard,
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runDashboard(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger("dashboard")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Warn("Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	tui.InitializeTUI()
	keys := keymap.NewDashboard()
	keymap.ApplyOverrides(&keys, keymap.LoadOverrides(cfg))

	model := dashboard.New(ctx, client, newSynchronizer(client),
		[]dashboard.Option{dashboard.WithKeyMap(keys)},
		viewer.WithCredentialGrace(cfg.Stream.CredentialGrace.Std()),
		viewer.WithLogger(logging.NewLogger("viewer")),
	)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if path := configPath(cmd); path != "" {
		w, err := configwatch.New(path, 0, func(next *config.Config) {
			if flagToken, _ := cmd.Flags().GetString("session-token"); flagToken != "" {
				return
			}
			client.SetAuth(authFor(next))
			logger.WithField("path", path).Info("Session credentials reloaded")
			program.Send(dashboard.StatusMsg("Configuration reloaded"))
		})
		if err != nil {
			logger.WithError(err).Warn("Config file will not be watched")
		} else {
			defer w.Close()
			go w.Start(ctx)
		}
	}

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// configPath is the file the effective configuration was read from, if any.
func configPath(cmd *cobra.Command) string {
	if path := cli.GetOptions(cmd).ConfigFile; path != "" {
		return path
	}
	path, err := config.FindConfigFile(".")
	if err != nil {
		return ""
	}
	return path
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
