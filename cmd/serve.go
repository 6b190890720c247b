package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/drillcore/internal/adapters/catalog"
	"github.com/okian/drillcore/internal/adapters/http/api"
	"github.com/okian/drillcore/internal/adapters/storage/memstore"
	"github.com/okian/drillcore/internal/adapters/storage/sqlstore"
	service "github.com/okian/drillcore/internal/app"
	"github.com/okian/drillcore/internal/config"
	"github.com/okian/drillcore/internal/domain/rotation"
	"github.com/okian/drillcore/internal/pipeline"
	"github.com/okian/drillcore/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply event store migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			st, err := openSQLStore(ctx, cfg, logger.Named("store"))
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			logger.Get().Info(ctx, "migrations applied", logger.String("driver", cfg.StoreDriver))
			return nil
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := logger.Get()

	store, cache, err := openStore(ctx, cfg, log.Named("store"))
	if err != nil {
		log.Error(ctx, "failed to open event store", logger.Error(err))
		return err
	}

	sess := service.New(
		service.WithConfig(cfg),
		service.WithLogger(log),
		service.WithStore(store),
		service.WithCache(cache),
		service.WithCatalog(newCatalog(cfg)),
	)
	if err := sess.Start(ctx); err != nil {
		log.Error(ctx, "failed to start session", logger.Error(err))
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := sess.Stop(stopCtx); err != nil {
			log.Error(ctx, "session stop failed", logger.Error(err))
		}
	}()

	go startServiceMetricsUpdater(ctx, sess)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(sess, cfg, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newHandler(sess *service.Session, cfg *config.Config, log logger.Logger) http.Handler {
	return api.NewServer(sess,
		api.WithLogger(log),
		api.WithMaxEvents(cfg.MaxEventsLimit),
	).Routes()
}

// openStore picks the event store and rotation cache for cfg.StoreDriver.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (pipeline.Store, rotation.Cache, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return memstore.New(), memstore.NewCache(), nil
	}
	st, err := openSQLStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return st, sqlstore.NewCache(st), nil
}

func openSQLStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*sqlstore.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return sqlstore.OpenSQLite(ctx, cfg.SQLitePath, sqlstore.WithLogger(log))
	case config.DriverPostgres:
		return sqlstore.OpenPostgres(ctx, cfg.PostgresDSN, sqlstore.WithLogger(log))
	default:
		return nil, fmt.Errorf("%w: driver %q has no SQL store", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

func newCatalog(cfg *config.Config) rotation.Catalog {
	if cfg.CatalogPath != "" {
		return catalog.NewFile(cfg.CatalogPath)
	}
	return catalog.NewStatic(nil)
}

// startServiceMetricsUpdater refreshes pipeline gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, sess *service.Session) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.GetStats(ctx)
		}
	}
}
