package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/domainrouter-go/internal/httpapi"
	"github.com/John-Robertt/domainrouter-go/internal/logging"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reduce API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if listen == "" {
				listen = cfg.Server.Listen
			}
			ro := cfg.RulesOptions()
			srv := &http.Server{
				Addr: listen,
				Handler: httpapi.NewHandlerWithOptions(httpapi.Options{
					ReduceTimeout: cfg.Server.RequestTimeout,
					MaxBodyBytes:  cfg.Fetch.MaxBytes,
					Rules:         &ro,
				}),
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			}
			return serve(cmd.Context(), srv, cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (default server.listen)")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	logger := logging.Get("serve")
	logger.Info().Str("addr", srv.Addr).Msgf("listening on http://%s", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			_ = srv.Close()
		}

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
