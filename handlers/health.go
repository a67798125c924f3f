package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/module-enhancer/utils/response"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck() error
}

// HandleCheckHealth handles GET /health
func HandleCheckHealth(db HealthChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			if err := db.HealthCheck(); err != nil {
				return response.ServiceUnavailable(c, "Database unreachable")
			}
		}
		return response.Success(c, fiber.Map{"status": "ok"})
	}
}
