package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/pkg/apperrors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPErrorHandler renders echo and application errors as ErrorBody. Causes
// of 5xx errors are logged but never sent to the caller.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var he *echo.HTTPError
		var appErr *apperrors.AppError
		switch {
		case errors.As(err, &he):
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
			if he.Internal != nil && status < 500 {
				// Bind and validation errors wrap a useful cause.
				if inner, ok := he.Internal.(*apperrors.AppError); ok {
					message = apperrors.PublicMessage(inner)
				}
			}
		case errors.As(err, &appErr):
			status = apperrors.HTTPStatus(appErr)
			message = apperrors.PublicMessage(appErr)
		}

		rid, _ := c.Get("request_id").(string)
		if status >= 500 {
			logger.Error().Err(err).Str("request_id", rid).Int("status", status).Msg("request failed")
		}

		body := ErrorBody{
			Error:     errorCode(status),
			Message:   message,
			RequestID: rid,
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error().Err(err).Str("request_id", rid).Msg("write error response")
		}
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadGateway:
		return "upstream_error"
	case http.StatusGatewayTimeout:
		return "timeout"
	}
	if status >= 500 {
		return "internal"
	}
	return "error"
}
