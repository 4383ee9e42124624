package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindInvalidRequest:    http.StatusBadRequest,
	service.KindCapacityExceeded:  http.StatusConflict,
	service.KindDuplicateBooking:  http.StatusConflict,
	service.KindFeatureDisabled:   http.StatusForbidden,
	service.KindNotFound:          http.StatusNotFound,
	service.KindStorageConflict:   http.StatusConflict,
	service.KindInvalidTransition: http.StatusConflict,
	service.KindTooManyRecords:    http.StatusBadRequest,
}

// MapServiceError converts a service error to a problem document.  Errors
// without a kind become 500 with a generic detail.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		if status, ok := kindStatus[svcErr.Kind]; ok {
			// Message only; the wrapped cause may carry driver details.
			return model.NewProblem(status, string(svcErr.Kind), svcErr.Message)
		}
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		detail, _ := httpErr.Message.(string)
		return model.NewProblem(httpErr.Code, "", detail)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewProblem(http.StatusServiceUnavailable, "TIMEOUT", "request timed out")
	}
	return model.NewProblem(http.StatusInternalServerError, "INTERNAL", "internal error")
}

func writeProblem(c echo.Context, p *model.ProblemDetails) error {
	if p.Instance == "" {
		p.Instance = c.Request().URL.Path
	}
	c.Response().Header().Set(echo.HeaderContentType, model.ProblemContentType)
	return c.JSON(p.Status, p)
}

func badRequest(c echo.Context, detail string) error {
	return writeProblem(c, model.NewProblem(http.StatusBadRequest, string(service.KindInvalidRequest), detail))
}

// respondError renders err as a problem and logs failures the caller
// cannot fix.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	p := MapServiceError(err)
	if p.Status >= http.StatusInternalServerError {
		ctx := c.Request().Context()
		logging.Resolve(ctx, logger).ErrorContext(ctx, "request failed", "error", err)
	}
	return writeProblem(c, p)
}

// ErrorHandler is the echo HTTPErrorHandler.  It renders errors that
// escape handlers and middleware (unknown routes, bad methods, panics
// recovered by echo) as problem documents.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(MapServiceError(err).Status)
			return
		}
		_ = respondError(c, logger, err)
	}
}
