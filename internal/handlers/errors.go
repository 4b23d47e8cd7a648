package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const serverError = "Server Error"

var errNoResults = errors.New("advanced results missing from context")

// StatusFor maps an AppError code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeValidation:
		return http.StatusBadRequest
	// Not-owner is reported as 401, like bad credentials.
	case models.CodeUnauthorized, models.CodeForbidden:
		return http.StatusUnauthorized
	case models.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case models.CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case models.CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorHandler renders every error as {success:false, error:"..."}.
// Unexpected errors are logged and answered with a generic 500.
func NewErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message := resolve(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, echo.Map{"success": false, "error": message})
		}
		if werr != nil {
			logger.Warn("failed to write error response", zap.Error(werr))
		}
	}
}

func resolve(err error) (int, string) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		status := StatusFor(appErr.Code)
		if status == http.StatusInternalServerError {
			return status, serverError
		}
		return status, appErr.Message
	}
	if msg, ok := validators.Message(err); ok {
		return http.StatusBadRequest, msg
	}
	if errors.Is(err, models.ErrDuplicate) {
		return http.StatusBadRequest, "Duplicate field value entered"
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, serverError
		}
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, fmt.Sprint(he.Message)
	}
	return http.StatusInternalServerError, serverError
}

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return models.NewValidationError("Invalid request payload")
	}
	return c.Validate(req)
}
