package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"scout/internal/platform/config"
	"scout/internal/platform/httpserver"
	"scout/internal/platform/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background search poller",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.New(cfg.Log.Format, cfg.Log.Level)
		slog.SetDefault(log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log, nil)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "interface to listen on")
	serveCmd.Flags().Int("port", 0, "port to listen on")
	serveCmd.Flags().String("storage", "", "storage backend: memory, redis or postgres")
	serveCmd.Flags().String("provider", "", "search provider: exa or simulated")

	mustBind("server.host", serveCmd.Flags().Lookup("host"))
	mustBind("server.port", serveCmd.Flags().Lookup("port"))
	mustBind("storage.backend", serveCmd.Flags().Lookup("storage"))
	mustBind("exa.provider", serveCmd.Flags().Lookup("provider"))
}

// serve runs until ctx is cancelled, then drains HTTP connections and stops
// the poller. When ln is nil the server listens on the configured address.
func serve(ctx context.Context, cfg config.Config, log *slog.Logger, ln net.Listener) error {
	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server.Addr(), a.router, a.callBudget)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.poller.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.InfoContext(gctx, "starting scout", "addr", srv.Addr, "version", version)
		var err error
		if ln != nil {
			err = srv.Serve(ln)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, a.close(closeCtx, log))
}
