package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/facturio/invoice-engine/internal/config"
	"github.com/facturio/invoice-engine/internal/dispatch"
	"github.com/facturio/invoice-engine/internal/handler"
	"github.com/facturio/invoice-engine/internal/infra/postgresql"
	"github.com/facturio/invoice-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/facturio/invoice-engine/internal/infra/redis"
	"github.com/facturio/invoice-engine/internal/observability"
	"github.com/facturio/invoice-engine/internal/queue"
	"github.com/facturio/invoice-engine/internal/repository"
	"github.com/facturio/invoice-engine/internal/service"
	"github.com/facturio/invoice-engine/internal/transport"
)

const dispatchTimeout = 30 * time.Second

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

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(rabbit)
	defer publisher.Close() //nolint:errcheck

	var client dispatch.Client
	var prober handler.InvoicingProber
	if cfg.Simulated() {
		logger.Warn("invoicing runs in simulated mode, no real dispatch happens")
		client = dispatch.NewSimulatedClient()
	} else {
		apiClient, err := dispatch.NewAPIClient(cfg.InvoicingAPIURL, cfg.InvoicingAPIToken, dispatchTimeout)
		if err != nil {
			logger.Fatal("invoicing client initialization failed", zap.Error(err))
		}
		client = apiClient
		prober = apiClient
	}

	batchRepo := repository.NewGormBatchRepo(db)
	recordRepo := repository.NewGormInvoiceRecordRepo(db)

	batchService, err := service.NewBatchService(batchRepo, recordRepo, publisher, cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal("batch service initialization failed", zap.Error(err))
	}

	invoiceService, err := service.NewInvoiceService(recordRepo, client, rateLimiter, logger)
	if err != nil {
		logger.Fatal("invoice service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:      "invoice-engine",
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    64 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, prober)
	app.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())(c.Context())
		return nil
	})

	if err := handler.RegisterBatchRoutes(app, batchService); err != nil {
		logger.Fatal("failed to register batch routes", zap.Error(err))
	}
	if err := handler.RegisterInvoiceRoutes(app, invoiceService); err != nil {
		logger.Fatal("failed to register invoice routes", zap.Error(err))
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutdown signal received")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("invoice-engine api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}
