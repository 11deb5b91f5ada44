package bridge

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// cors allows any origin on every response and answers every OPTIONS request
// as a preflight with 204 and no body.
func cors(c *fiber.Ctx) error {
	setCORSHeaders(c)

	if c.Method() == fiber.MethodOptions {
		c.Status(fiber.StatusNoContent)
		return nil
	}
	return c.Next()
}

func setCORSHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type")
}

// requestLogger tags each request with an ID and logs its outcome. Errors are
// rendered here so the logged status is the one sent to the caller.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	id := uuid.NewString()
	c.Locals(requestIDKey, id)
	c.Set(requestIDHeader, id)

	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	s.logger.Info("handled request",
		zap.String("request_id", id),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
