package server

import (
	"time"

	"github.com/flowbaker/runreel/internal/controllers"
	"github.com/flowbaker/runreel/internal/metrics"
	"github.com/flowbaker/runreel/internal/middlewares"
	"github.com/flowbaker/runreel/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type HTTPServerDependencies struct {
	ReelController *controllers.ReelController
	Metrics        *metrics.Metrics
	// DisableRequestLog turns off the per request access log.
	DisableRequestLog bool
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "runreel",
	})

	router.Use(cors.New())
	router.Use(middlewares.RequestIDMiddleware())

	if !deps.DisableRequestLog {
		router.Use(logger.New())
	}

	if deps.Metrics != nil {
		router.Use(middlewares.MetricsMiddleware(deps.Metrics))
		router.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "runreel",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	flows := router.Group("/v1/flows/:flowID", middlewares.AccountScopeMiddleware())

	flows.Get("/gif/status", deps.ReelController.GetGifStatus)
	flows.Post("/gif", deps.ReelController.CreateGif)

	testUtils := router.Group("/test-utils", middlewares.AccountScopeMiddleware())

	testUtils.Get("/gif/:flowID/:runID", deps.ReelController.RegenerateGif)

	return router
}
