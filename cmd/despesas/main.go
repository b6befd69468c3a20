package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"despesas/internal/amqp"
	"despesas/internal/cache"
	"despesas/internal/cli"
	apphttp "despesas/internal/http"
	applog "despesas/internal/log"
	"despesas/internal/metrics"
	"despesas/internal/middleware/auth"
	"despesas/internal/middleware/ratelimit"
	"despesas/internal/services"
)

const cacheCleanupInterval = time.Minute

func main() {
	// Load .env file for local development (ignored when absent)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	generator, err := cfg.Generator()
	if err != nil {
		logger.Error("Invalid schedule policy", "error", err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	m := metrics.New()
	statements := cache.NewStatementCache(cfg.CacheSize, cfg.CacheTTL, m)
	caches := cache.NewManager()
	caches.Register(statements)
	caches.StartCleanup(cacheCleanupInterval)

	opts := []services.Option{
		services.WithGenerator(generator),
		services.WithObserver(m),
		services.WithStatementCache(statements),
	}

	// Publishing is optional: without AMQP the worker still catches up via
	// its periodic resync.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without schedule events", "error", err)
			amqpClient = nil
		} else {
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - schedule events will not be published")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	if !verifier.Enabled() {
		logger.Warn("JWT_SECRET not set - API authentication disabled")
	}

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerMinute = cfg.RateLimitPerMinute

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger.WithComponent(applog.ComponentHTTP),
		Expenses:       services.NewExpenseService(repo, opts...),
		Catalog:        services.NewCatalogService(repo),
		Ready:          repo,
		Metrics:        m,
		Limiter:        ratelimit.NewLimiter(limiterCfg),
		Verifier:       verifier,
	})

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting despesas server",
			"port", cfg.Port,
			"auth", verifier.Enabled(),
			"recurrence_months", generator.Horizon,
			"day_overflow", cfg.DayOverflow)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return cli.GracefulShutdown(logger, 30*time.Second,
			cli.ShutdownStep{Name: "http", Fn: srv.Shutdown},
			cli.ShutdownStep{Name: "cache", Fn: func(context.Context) error { caches.Stop(); return nil }},
			cli.ShutdownStep{Name: "amqp", Fn: func(context.Context) error {
				if amqpClient == nil {
					return nil
				}
				return amqpClient.Close()
			}},
			cli.ShutdownStep{Name: "sqlite", Fn: func(context.Context) error { return repo.Close() }},
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
