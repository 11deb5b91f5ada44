package bridge

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/mcpbridge/pkg/dispatch"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
	"github.com/papercomputeco/mcpbridge/pkg/provider"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(map[string]string{"status": "ok"})
}

// handleConfig returns the configuration with API keys redacted.
func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.dispatcher.Config().Snapshot())
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req dispatch.ChatRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	result, err := s.dispatcher.Chat(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var req dispatch.VisionRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	result, err := s.dispatcher.Vision(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) handleBatch(c *fiber.Ctx) error {
	var req dispatch.VisionRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	result, err := s.dispatcher.Batch(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func handleUnknown(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "Unknown endpoint"})
}

// decodeBody parses a JSON request body into v.
func decodeBody(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return llm.NewValidationError("Missing request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return llm.NewValidationError("Invalid JSON payload: %v", err)
	}
	return nil
}

// handleError turns handler errors into the uniform error envelope:
// validation and provider failures are the caller's 400, anything else is a 500.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	// Errors raised before routing (oversized bodies) arrive on a fresh ctx
	// that never passed through cors.
	setCORSHeaders(c)

	var (
		verr *llm.ValidationError
		perr *provider.Error
		ferr *fiber.Error
	)

	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Any("request_id", c.Locals(requestIDKey)),
		zap.Error(err),
	}

	switch {
	case errors.As(err, &verr), errors.As(err, &perr):
		if perr != nil {
			fields = append(fields, zap.String("provider", perr.Provider), zap.Int("upstream_status", perr.StatusCode))
		}
		s.logger.Error("request processing failed", fields...)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})

	case errors.As(err, &ferr):
		s.logger.Warn("request rejected", fields...)
		return c.Status(ferr.Code).JSON(llm.ErrorResponse{Error: ferr.Message})

	default:
		s.logger.Error("unexpected server error", append(fields, zap.Stack("stack"))...)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	}
}

func (s *Server) logPanic(c *fiber.Ctx, e any) {
	s.logger.Error("handler panicked",
		zap.String("path", c.Path()),
		zap.String("panic", fmt.Sprint(e)),
		zap.Stack("stack"),
	)
}
