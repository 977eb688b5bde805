package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/patchmatrix/internal/patchserver"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port    int
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local patch server for the catalog",
		Long: `Start a development patch server that validates submissions against the
catalog and answers with a new version id. Stops on SIGINT/SIGTERM.
With --persist, versions are written to disk and reloaded on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			settings := patchserver.SettingsFromConfig(e.cfg)
			if cmd.Flags().Changed("port") {
				settings.Port = port
			}
			serverOpts := []patchserver.Option{patchserver.WithLogger(e.logger.Named("patchserver"))}
			if persist {
				store, err := patchserver.NewFileStore(e.cfg.VersionsDir())
				if err != nil {
					return err
				}
				serverOpts = append(serverOpts, patchserver.WithStore(store))
				fmt.Fprintf(cmd.OutOrStdout(), "Storing versions in %s\n", store.Dir())
			}
			srv := patchserver.NewServer(settings, cat, serverOpts...)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(cmd.Context(), sigCtx, srv, cat.Patch.ID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config; 0 picks a free port)")
	cmd.Flags().BoolVar(&persist, "persist", false, "keep accepted versions under .patchmatrix/versions")
	return cmd
}

// runServer serves until stop is done, then drains in-flight requests.
// Requests run under ctx, not stop, so a signal does not cancel them.
func runServer(ctx, stop context.Context, srv *patchserver.Server, patchID string, out io.Writer) error {
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Serving patch %s at %s\n", patchID, srv.BaseURL())
	<-stop.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Fprintf(out, "Stopped after %d submissions\n", len(srv.Versions()))
	return nil
}
