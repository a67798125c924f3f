package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/sahilchouksey/module-enhancer/utils/response"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           *logger.Logger
}

func NewAPIServer(listenAddress string, log *logger.Logger) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:               "module-enhancer",
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler(log),
		}),
		listenAddress: listenAddress,
		log:           log,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.log.Info("Starting API Server", "address", s.listenAddress)
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for open requests until ctx is done
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping API Server")
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler renders unhandled errors in the standard response envelope
func errorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("Request failed", "path", c.Path(), "method", c.Method(), "error", err)
			return response.InternalServerError(c, "")
		}
		return response.Error(c, code, err.Error(), "REQUEST_ERROR")
	}
}
