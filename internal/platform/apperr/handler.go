package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HTTPErrorHandler renders *Error and *echo.HTTPError values as ErrorResponse.
// Internal detail and wrapped causes are logged and never written to the client.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := ErrorResponse{}
		var appErr *Error
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &appErr):
			resp.Code = appErr.Kind.HTTPStatus()
			resp.Error = appErr.Kind.String()
			resp.Message = appErr.Message
			evt := logger.Warn()
			if appErr.Kind == Internal || appErr.Kind == UpstreamUnavailable || appErr.Kind == StorageFull {
				evt = logger.Error()
			}
			evt.Err(appErr.Err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Str("kind", appErr.Kind.String()).
				Str("detail", appErr.Detail).
				Msg(appErr.Message)
		case errors.As(err, &httpErr):
			resp.Code = httpErr.Code
			resp.Error = http.StatusText(httpErr.Code)
			resp.Message = fmt.Sprintf("%v", httpErr.Message)
		default:
			resp.Code = http.StatusInternalServerError
			resp.Error = Internal.String()
			resp.Message = "internal server error"
			logger.Error().Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(resp.Code)
		} else {
			err = c.JSON(resp.Code, resp)
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
