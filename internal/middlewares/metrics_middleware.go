package middlewares

import (
	"strconv"
	"time"

	"github.com/flowbaker/runreel/internal/metrics"

	"github.com/gofiber/fiber/v3"
)

// MetricsMiddleware records request counts and latency per route pattern.
func MetricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c fiber.Ctx) error {
		startedAt := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		}

		path := c.Route().Path

		m.HTTPRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(startedAt).Seconds())

		return err
	}
}
