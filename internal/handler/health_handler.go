package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/config"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// ReadinessCheck pings each dependency and answers 503 while any is down.
func ReadinessCheck(dependencies map[string]Pinger, logger zerolog.Logger) fiber.Handler {
	logger = logger.With().Str("component", "readiness").Logger()

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(dependencies))
		ready := true
		for name, dependency := range dependencies {
			if dependency == nil {
				continue
			}
			if err := dependency.Ping(ctx); err != nil {
				logger.Warn().Err(err).Str("dependency", name).Msg("dependency not ready")
				checks[name] = "down"
				ready = false
				continue
			}
			checks[name] = "up"
		}

		if !ready {
			return utils.Fail(c, fiber.StatusServiceUnavailable, "service not ready", checks)
		}
		return utils.OK(c, checks, "service ready", nil)
	}
}
