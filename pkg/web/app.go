package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dealflow/dealflow/pkg/engine"
	"github.com/dealflow/dealflow/pkg/persistence"
	"github.com/dealflow/dealflow/pkg/registry"
)

// NewApp builds the fiber application with all routes mounted.
func NewApp(eng *engine.Engine, persist persistence.Persistence, reg *registry.Registry) *fiber.App {
	handlers := NewAPIHandlers(eng, persist, reg, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Dealflow Workflow Engine")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.SaveWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/executions", handlers.RunExecution)
	w.Get("/:id/executions", handlers.ListExecutions)

	ex := app.Group("/executions")
	ex.Get("/:id", handlers.GetExecution)
	ex.Post("/:id/resume", handlers.ResumeExecution)
	ex.Post("/:id/cancel", handlers.CancelExecution)
	ex.Get("/:id/hitl", handlers.GetPendingHITL)

	app.Post("/hitl/:id/respond", handlers.RespondHITL)

	app.Get("/node-kinds", handlers.GetNodeKinds)
	app.Get("/health", handlers.HealthCheck)

	return app
}
