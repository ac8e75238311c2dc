package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"knowledgeforge/internal/apperr"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// newErrorHandler translates apperr.Error (and anything else a handler or
// middleware returns) into the {"error": {code, message, details}} envelope
// from spec.md §6.
func newErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := errorBody{Code: string(apperr.CodeInternal), Message: "internal error"}

		if typed, ok := apperr.As(err); ok {
			status = apperr.HTTPStatus(typed.Code)
			body = errorBody{Code: string(typed.Code), Message: typed.Message, Details: typed.Details}
		} else if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			body.Code = string(apperr.CodeBadRequest)
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			}
		} else {
			log.Error().Err(err).Str("path", c.Path()).Msg("httpserver: unhandled error")
		}

		if writeErr := c.JSON(status, errorEnvelope{Error: body}); writeErr != nil {
			log.Error().Err(writeErr).Msg("httpserver: failed writing error response")
		}
	}
}
