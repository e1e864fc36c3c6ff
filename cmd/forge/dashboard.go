package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/forge/internal/console"
	"github.com/fyrsmithlabs/forge/internal/dashboard"
)

var (
	dashDir   string
	dashServe bool
	dashHost  string
	dashPort  int
)

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().StringVarP(&dashDir, "dir", "d", ".", "project directory")
	dashboardCmd.Flags().BoolVar(&dashServe, "serve", false, "serve the dashboard over HTTP")
	dashboardCmd.Flags().StringVar(&dashHost, "host", "localhost", "bind host for --serve")
	dashboardCmd.Flags().IntVar(&dashPort, "port", 8712, "bind port for --serve")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the run-history dashboard",
	Long: `Dashboard renders the project's run history into a static HTML page.
With --serve it also hosts the page with live JSON endpoints for runs
and aggregate stats.

Examples:
  forge dashboard
  forge dashboard --serve
  forge dashboard --serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	_, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	term := console.NewTerminal(cmd.OutOrStdout())

	dir, err := filepath.Abs(dashDir)
	if err != nil {
		return err
	}

	path, err := dashboard.Generate(dir)
	if err != nil {
		return fmt.Errorf("generate dashboard: %w", err)
	}
	term.Success("Dashboard written to %s", path)

	if !dashServe {
		term.Detail("Open it in a browser, or rerun with --serve")
		return nil
	}

	srv, err := dashboard.NewServer(dir, log.Underlying(), &dashboard.Config{Host: dashHost, Port: dashPort})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	term.Info("Serving dashboard at http://%s", srv.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
