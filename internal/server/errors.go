package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/easeaico/eve/internal/types"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError describes a failure.
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Param     string `json:"param,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func badRequest(c echo.Context, param, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: &APIError{
		Message:   message,
		Type:      "invalid_request_error",
		Param:     param,
		RequestID: requestID(c),
	}})
}

// writeError maps the error taxonomy onto HTTP statuses. Internal failures
// are logged and reported without detail.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: &APIError{
			Message:   err.Error(),
			Type:      "not_found_error",
			RequestID: requestID(c),
		}})
	case errors.Is(err, types.ErrBusinessRule):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: &APIError{
			Message:   err.Error(),
			Type:      "invalid_request_error",
			RequestID: requestID(c),
		}})
	}

	slog.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"request_id", requestID(c),
		"error", err.Error(),
	)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: &APIError{
		Message:   "internal error",
		Type:      "server_error",
		RequestID: requestID(c),
	}})
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
