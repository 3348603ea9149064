package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/repository"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// invalidRequest is a client error whose message is safe to echo back.
type invalidRequest struct{ msg string }

func (e *invalidRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &invalidRequest{msg: fmt.Sprintf(format, args...)}
}

// classify maps an error to its HTTP status, machine code and the message
// shown to clients.  Unknown errors are Internal and never leak details.
// Conflicts (duplicate registration or link, a guest already seated, a
// shrink blocked by occupied seats) are 409 with code "conflict", not 400.
func classify(err error) (int, string, string) {
	var ir *invalidRequest
	var he *echo.HTTPError
	switch {
	case errors.Is(err, auth.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable", "identity provider unavailable, retry later"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "invalid or missing credentials"
	case errors.Is(err, repository.ErrNotRegistered):
		return http.StatusNotFound, "not_registered", "no current user"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden", "not allowed to access this resource"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict", "request conflicts with existing data"
	case errors.Is(err, repository.ErrEmailRequired):
		return http.StatusBadRequest, "invalid_request", "identity token carries no email address"
	case errors.As(err, &ir):
		return http.StatusBadRequest, "invalid_request", ir.msg
	case errors.As(err, &he):
		return he.Code, statusCode(he.Code), fmt.Sprint(he.Message)
	}
	return http.StatusInternalServerError, "internal", "internal server error"
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	}
	if status >= 500 {
		return "internal"
	}
	return "error"
}

// ErrorHandler replaces echo's default so every failure, including
// framework 404/405s, uses the same envelope.  Internal failures are
// logged with the request id.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, code, msg := classify(err)
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, ErrorResponse{ErrorCode: code, Message: msg})
		}
		if err != nil {
			logger.Error("write error response", "error", err)
		}
	}
}
