package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/pkg/fault"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

type SuccessResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data,omitempty"`
	Meta    *Meta `json:"meta,omitempty"`
}

func CreateErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: APIError{
			Code:    code,
			Message: message,
		},
	}
}

func CreateSuccessResponse(data any) SuccessResponse {
	return SuccessResponse{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Timestamp: time.Now(),
		},
	}
}

// writeError maps a service error onto its HTTP status and envelope.
func writeError(c fiber.Ctx, log *logger.Logger, err error) error {
	var status int
	var code string

	switch fault.TypeOf(err) {
	case fault.Validation:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case fault.NotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case fault.InvalidState:
		status, code = http.StatusConflict, "INVALID_STATE"
	case fault.Conflict:
		// The store gave up retrying a serialization race.
		c.Set("Retry-After", "1")
		status, code = http.StatusServiceUnavailable, "CONFLICT"
	default:
		log.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return c.Status(http.StatusInternalServerError).
			JSON(CreateErrorResponse("INTERNAL_ERROR", "internal server error"))
	}

	return c.Status(status).JSON(CreateErrorResponse(code, fault.MessageOf(err, http.StatusText(status))))
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(CreateErrorResponse("INVALID_REQUEST", message))
}

// pathID parses the :id route parameter.
func pathID(c fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fault.NewValidationError("invalid id", err)
	}
	return id, nil
}
