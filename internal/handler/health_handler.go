package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/facturio/invoice-engine/internal/dispatch"
)

const readinessTimeout = 2 * time.Second

// InvoicingProber checks reachability of the remote invoicing service.
type InvoicingProber interface {
	Probe(ctx context.Context) dispatch.Outcome
}

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, prober InvoicingProber) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, prober))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// ReadyzHandler reports readiness of the direct dependencies. The invoicing
// check is informational only; an unreachable remote service degrades
// dispatch outcomes but does not make the API unable to accept uploads.
func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, prober InvoicingProber) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		pgErr := sqlDB.PingContext(ctx)
		redisErr := rdb.Ping(ctx).Err()

		pgStatus := "ok"
		if pgErr != nil {
			pgStatus = "down"
		}
		redisStatus := "ok"
		if redisErr != nil {
			redisStatus = "down"
		}

		checks := fiber.Map{
			"postgres": pgStatus,
			"redis":    redisStatus,
		}

		if prober != nil {
			invoicingStatus := "ok"
			if outcome := prober.Probe(ctx); !outcome.Success() {
				invoicingStatus = "down"
			}
			checks["invoicing"] = invoicingStatus
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if pgErr != nil || redisErr != nil {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
