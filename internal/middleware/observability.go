package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/observability"
)

// Observability records Prometheus metrics and a structured log line for every
// API request. Routes outside /api/ are ignored.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		if strings.HasPrefix(c.Path(), "/api/") {
			record(c, logger, time.Since(start))
		}

		return err
	}
}

func record(c *fiber.Ctx, logger zerolog.Logger, elapsed time.Duration) {
	route := c.Path()
	if r := c.Route(); r != nil && r.Path != "" {
		route = r.Path
	}

	method := c.Method()
	status := c.Response().StatusCode()
	statusLabel := strconv.Itoa(status)

	observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
	observability.HTTPLatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
	if status >= fiber.StatusBadRequest {
		observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
	}

	line := logger.With().
		Str("correlation_id", GetCorrelationID(c)).
		Str("method", method).
		Str("route", route).
		Int("status", status).
		Dur("latency", elapsed).
		Logger()

	switch {
	case status >= fiber.StatusInternalServerError:
		line.Error().Msg("request failed")
	case status >= fiber.StatusBadRequest:
		line.Warn().Msg("request completed with client error")
	default:
		line.Info().Msg("request completed")
	}
}
