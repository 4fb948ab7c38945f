package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/grovetools/storefront/internal/mockapi"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/pkg/storeapi"
	"github.com/spf13/cobra"
)

// NewMockServerCmd creates the `mock-server` command.
func NewMockServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local stand-in for the orchestration service",
		Long: `Serves the store API and provisioning log streams from memory, with a
scripted chart install for every new store. Useful for trying the client
without a cluster.`,
		Args: cobra.NoArgs,
		RunE: runMockServer,
	}
	cmd.Flags().String("addr", "127.0.0.1:8000", "Address to listen on")
	cmd.Flags().String("token", "", "Require this session token (empty accepts any request)")
	cmd.Flags().Duration("delay", mockapi.DefaultScript.Delay, "Pause between provisioning log lines")
	cmd.Flags().Bool("fail", false, "End every provisioning job with PROVISIONING_FAILED")
	cmd.Flags().Duration("list-lag", 0, "Keep new stores out of list responses for this long")
	return cmd
}

func runMockServer(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger("mockapi")
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")
	delay, _ := cmd.Flags().GetDuration("delay")
	fail, _ := cmd.Flags().GetBool("fail")
	lag, _ := cmd.Flags().GetDuration("list-lag")

	srv := mockapi.New(logger, storeapi.DefaultCookieName, token)
	script := mockapi.DefaultScript
	script.Delay = delay
	script.Fail = fail
	srv.SetScript(script)
	srv.SetListLag(lag)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()
	fmt.Fprintf(cmd.ErrOrStderr(), "Mock orchestration service on http://%s (Ctrl+C to stop)\n", addr)

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
