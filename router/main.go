package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/module-enhancer/handlers"
	enhancement_handlers "github.com/sahilchouksey/module-enhancer/handlers/enhancement"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

// Dependencies are the services the routes are built on
type Dependencies struct {
	DB       handlers.HealthChecker
	Queue    enhancement_handlers.JobQueue
	Preparer enhancement_handlers.RequestPreparer
	Log      *logger.Logger
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", handlers.HandleCheckHealth(deps.DB))

	enhancementHandler := enhancement_handlers.NewEnhancementHandler(deps.Queue, deps.Preparer, deps.Log)

	// API v1 group
	api := app.Group("/api/v1")

	api.Post("/modules/:id/enhance", enhancementHandler.EnhanceModule)
	api.Get("/enhancement/queue", enhancementHandler.QueueStatus)
}
