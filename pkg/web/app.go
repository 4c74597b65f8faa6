package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp builds the fiber application with all routes registered.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Trigon API")
	})

	e := app.Group("/events")
	e.Post("/report", handlers.ReportEvent)
	e.Post("/report-bulk", handlers.ReportEventBulk)
	e.Post("/cancel", handlers.CancelEvent)
	e.Post("/cancel-bulk", handlers.CancelEventBulk)

	s := app.Group("/schedules")
	s.Post("/", handlers.CreateSchedule)
	s.Delete("/:identifier", handlers.DeleteSchedule)

	app.Post("/actions/completed", handlers.ActionCompleted)
	app.Post("/automations/:id/run", handlers.RunAutomation)
	app.Get("/activations/:id", handlers.GetActivation)

	app.Get("/health", handlers.HealthCheck)

	return app
}
