// Command boardauth serves the board authentication API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"gorm.io/gorm"

	"github.com/MrEthical07/boardauth"
	"github.com/MrEthical07/boardauth/audit/amqpsink"
	"github.com/MrEthical07/boardauth/httpapi"
	"github.com/MrEthical07/boardauth/internal/config"
	"github.com/MrEthical07/boardauth/internal/logging"
	otelexport "github.com/MrEthical07/boardauth/metrics/export/otel"
	"github.com/MrEthical07/boardauth/metrics/export/prometheus"
	"github.com/MrEthical07/boardauth/store"
	"github.com/MrEthical07/boardauth/uow"
	"github.com/MrEthical07/boardauth/viewcount"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "boardauth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, os.Stdout).With("service", cfg.ProjectName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.Open(initCtx, cfg.DatabaseURL, store.DefaultPoolConfig())
	if err == nil {
		err = store.Migrate(initCtx, db)
	}
	cancel()
	if err != nil {
		return err
	}
	defer store.Close(db)

	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	builder := boardauth.New().
		WithConfig(engineConfig(cfg)).
		WithDB(db).
		WithRedis(rdb).
		WithLogger(logger)

	var sink *amqpsink.Sink
	if cfg.AuditAMQPURL != "" {
		sink, err = amqpsink.Dial(cfg.AuditAMQPURL, cfg.AuditAMQPQueue, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	// Readers (OTLP, stdout) are attached by deployments through sdkmetric.WithReader.
	provider := sdkmetric.NewMeterProvider()
	defer provider.Shutdown(context.WithoutCancel(ctx))

	otelExporter, err := otelexport.New(provider.Meter("boardauth"), engine)
	if err != nil {
		return fmt.Errorf("otel exporter: %w", err)
	}
	defer otelExporter.Close()

	mgr := uow.NewManager(db)
	var views viewcount.Reader = viewcount.NewDirect(mgr)
	if cfg.UseViewsCounterCache {
		vcfg := viewcount.DefaultConfig()
		vcfg.Logger = logger
		vcfg.Metrics = engine.Metrics()
		cache := viewcount.New(rdb, mgr, vcfg)
		views = cache

		scheduler := viewcount.NewScheduler(cache, cfg.ViewsSyncInterval)
		scheduler.Start(ctx)
		defer func() {
			cache.Wait()
			scheduler.Stop()
		}()
		logger.Info("views counter cache enabled", "sync_interval", cfg.ViewsSyncInterval.String())
	}

	e := httpapi.New(httpapi.Deps{
		Auth:    engine,
		Views:   views,
		Metrics: prometheus.New(engine),
		Ready:   readiness(db, rdb),
		Logger:  logger,
	})
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return nil
}

func engineConfig(cfg config.Config) boardauth.Config {
	c := boardauth.DefaultConfig()
	c.JWT.Secret = []byte(cfg.SecretKey)
	c.JWT.SigningMethod = strings.ToLower(cfg.Algorithm)
	c.JWT.AccessTTL = cfg.AccessTTL
	c.JWT.RefreshTTL = cfg.RefreshTTL
	c.Security.MaxLoginAttempts = cfg.LoginMaxAttempts
	c.Security.LoginCooldownDuration = cfg.LoginCooldown
	c.Audit.Enabled = cfg.AuditAMQPURL != ""
	return c
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func readiness(db *gorm.DB, rdb redis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}
}
