package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/analytics"
	"github.com/openadstack/addecide/internal/api"
	"github.com/openadstack/addecide/internal/config"
	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/decision"
	"github.com/openadstack/addecide/internal/frequency"
	"github.com/openadstack/addecide/internal/geoip"
	"github.com/openadstack/addecide/internal/observability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer store.Close()

	analyticsSvc, err := analytics.InitClickHouse(cfg.ClickHouseDSN)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer analyticsSvc.Close()

	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		// Decisions stay correct without geo enrichment; clients just
		// lose country targeting unless they send it themselves.
		logger.Warn("geoip unavailable", zap.Error(err), zap.String("path", cfg.GeoIPDB))
		geoSvc = nil
	} else {
		defer func() { _ = geoSvc.Close() }()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	freq := frequency.NewChecker(store, pg, logger)
	engine := decision.NewEngine(pg, freq, logger)
	engine.SetProviderTagSource(pg)
	engine.SetSequenceCursor(store)
	engine.SetBaseURL(cfg.PublicBaseURL)
	engine.SetExpiry(cfg.DecisionExpiry)

	srvDeps := api.NewServer(logger, pg, store, engine, analyticsSvc, freq, geoSvc, metricsRegistry, cfg)
	var handler http.Handler = srvDeps.Routes()
	if cfg.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server")
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Ad decision server running", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
