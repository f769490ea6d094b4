// Serve command: wires the storage backend, services, and both HTTP
// listeners, then runs until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/internal/hub"
	"github.com/mesh-intelligence/schemalog/internal/logging"
	"github.com/mesh-intelligence/schemalog/internal/ratelimit"
	"github.com/mesh-intelligence/schemalog/internal/server"
	"github.com/mesh-intelligence/schemalog/internal/service"
	"github.com/mesh-intelligence/schemalog/internal/sqlite"
	"github.com/mesh-intelligence/schemalog/pkg/types"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the schemalog server",
	Long: `Run the public and admin HTTP listeners until interrupted. The
public listener serves schemas, logs, and the event stream behind API-key
authentication; the admin listener serves key management and should be bound
to a private interface.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg types.Config) error {
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := sqlite.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	events := hub.New(cfg.EventBuffer)
	defer events.Close()

	limiter := ratelimit.New()
	schemas := service.NewSchemas(store, log)
	logs := service.NewLogs(store, schemas, events, log, cfg.DefaultPageSize, cfg.MaxPageSize)
	keys := service.NewAPIKeys(store, limiter, log, cfg.DefaultRatePerSec, cfg.DefaultBurst)
	srv := server.New(schemas, logs, keys, events, log)

	public := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Router()}
	admin := &http.Server{Addr: cfg.AdminAddr, Handler: srv.AdminRouter()}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		log.Info("public listener up", zap.String("addr", cfg.ListenAddr))
		errCh <- public.ListenAndServe()
	}()
	go func() {
		log.Info("admin listener up", zap.String("addr", cfg.AdminAddr))
		errCh <- admin.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listener failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := public.Shutdown(shutdownCtx); err != nil {
		log.Warn("public shutdown", zap.Error(err))
	}
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Warn("admin shutdown", zap.Error(err))
	}
	return nil
}
