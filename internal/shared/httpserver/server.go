package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Routes is implemented by every module that exposes HTTP endpoints.
type Routes interface {
	RegisterRoutes(router fiber.Router)
}

type Server struct {
	app *fiber.App
}

func NewServer(modules ...Routes) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("HTTP request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.IP()),
		)
		return err
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	for _, m := range modules {
		m.RegisterRoutes(app)
	}

	return &Server{app: app}
}

// App exposes the fiber app, mainly for app.Test in handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	log.Info("HTTP server started", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down HTTP server...")
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler renders errors that escaped a handler (fiber errors, panics turned into errors)
// with the same envelope the handlers use.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Error("Unhandled HTTP error", zap.String("path", c.Path()), zap.Error(err))
		return JSONError(c, code, "internal server error")
	}
	return JSONError(c, code, err.Error())
}
