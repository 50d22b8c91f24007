package httpserver

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func JSONResponse(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(Envelope{Message: message, Data: data})
}

func JSONError(c *fiber.Ctx, status int, reason string) error {
	return c.Status(status).JSON(Envelope{Error: reason})
}

// ErrorMapping pairs a sentinel error with the HTTP status it renders as.
type ErrorMapping struct {
	Err    error
	Status int
}

// ErrorStatus maps sentinel errors to HTTP status codes. Order matters: an error wrapping
// several sentinels takes the status of the first one listed.
type ErrorStatus []ErrorMapping

// StatusFor returns the status of the first sentinel err wraps, 500 otherwise.
func (m ErrorStatus) StatusFor(err error) (int, error) {
	for _, e := range m {
		if errors.Is(err, e.Err) {
			return e.Status, e.Err
		}
	}
	return fiber.StatusInternalServerError, err
}

// Fail renders err through m. Known errors show their sentinel message; anything else is a 500
// with a generic reason.
func (m ErrorStatus) Fail(c *fiber.Ctx, err error) error {
	status, known := m.StatusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		return JSONError(c, status, "internal server error")
	}
	return JSONError(c, status, known.Error())
}
