package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/facturio/invoice-engine/internal/config"
	"github.com/facturio/invoice-engine/internal/dispatch"
	"github.com/facturio/invoice-engine/internal/handler"
	"github.com/facturio/invoice-engine/internal/infra/postgresql"
	"github.com/facturio/invoice-engine/internal/ingest"
	"github.com/facturio/invoice-engine/internal/observability"
	"github.com/facturio/invoice-engine/internal/pipeline"
	"github.com/facturio/invoice-engine/internal/queue"
	"github.com/facturio/invoice-engine/internal/repository"
	"github.com/facturio/invoice-engine/internal/service"
)

const (
	dispatchTimeout = 30 * time.Second
	// metricsPortOffset keeps the worker's metrics endpoint off the API
	// port so both can run on one host.
	metricsPortOffset = 1
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
	defer consumer.Close() //nolint:errcheck

	var client dispatch.Client
	if cfg.Simulated() {
		logger.Warn("invoicing runs in simulated mode, no real dispatch happens")
		client = dispatch.NewSimulatedClient()
	} else {
		client, err = dispatch.NewAPIClient(cfg.InvoicingAPIURL, cfg.InvoicingAPIToken, dispatchTimeout)
		if err != nil {
			logger.Fatal("invoicing client initialization failed", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()

	coordinator := dispatch.NewCoordinator(client, logger)
	coordinator.SetMetrics(metrics)

	batchRepo := repository.NewGormBatchRepo(db)
	recordRepo := repository.NewGormInvoiceRecordRepo(db)

	pipe := pipeline.New(batchRepo, recordRepo, ingest.NewEngine(logger), coordinator, logger)
	pipe.SetMetrics(metrics)

	worker, err := service.NewWorkerService(consumer, pipe, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	metricsApp.Get("/livez", handler.LivezHandler())
	metricsApp.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())(c.Context())
		return nil
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort+metricsPortOffset)
		if err := metricsApp.Listen(addr); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	defer func() {
		_ = metricsApp.ShutdownWithTimeout(5 * time.Second)
	}()

	logger.Info("invoice-engine worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("queue", queue.WorkQueue),
	)

	if err := worker.Start(ctx); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("invoice-engine worker stopped")
}
