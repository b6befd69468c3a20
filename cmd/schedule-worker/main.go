package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"despesas/internal/amqp"
	"despesas/internal/backend"
	"despesas/internal/cli"
	applog "despesas/internal/log"
	"despesas/internal/metrics"
	"despesas/internal/worker"
)

func main() {
	// Load .env file for local development (ignored when absent)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting schedule-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	exportCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export configuration", "error", err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger.Logger).CreateExporter(ctx, exportCfg)
	if err != nil {
		logger.Error("Failed to initialize schedule exporter", "error", err, "backend", exportCfg.Type)
		os.Exit(1)
	}

	m := metrics.New()
	w := worker.NewExportWorker(repo, exporter.Exporter, m, cfg.ExportResyncInterval)

	g, gctx := errgroup.WithContext(ctx)

	if err := w.Start(gctx); err != nil {
		logger.Error("Failed to start export worker", "error", err)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			err := amqpClient.Consume(gctx, w.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		logger.Info("Consuming schedule events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - relying on periodic resync", "interval", cfg.ExportResyncInterval)
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return cli.GracefulShutdown(logger, 30*time.Second,
			cli.ShutdownStep{Name: "worker", Fn: w.Stop},
			cli.ShutdownStep{Name: "metrics", Fn: func(ctx context.Context) error {
				if metricsSrv == nil {
					return nil
				}
				return metricsSrv.Shutdown(ctx)
			}},
			cli.ShutdownStep{Name: "amqp", Fn: func(context.Context) error {
				if amqpClient == nil {
					return nil
				}
				return amqpClient.Close()
			}},
			cli.ShutdownStep{Name: "exporter", Fn: func(context.Context) error {
				if exporter.Cleanup == nil {
					return nil
				}
				return exporter.Cleanup()
			}},
			cli.ShutdownStep{Name: "sqlite", Fn: func(context.Context) error { return repo.Close() }},
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
