package router

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "pdfqa/internal/errors"
)

// requestLogger logs every request once the response status is known.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				// Render now so the logged status is the one the client gets.
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			}

			level := slog.LevelInfo
			if res.Status >= 500 {
				level = slog.LevelError
			} else if res.Status >= 400 {
				level = slog.LevelWarn
			}
			logger.LogAttrs(req.Context(), level, "request", attrs...)
			return nil
		}
	}
}

// newErrorHandler renders every error as {success:false, error, message}.
// Internal causes are only shown when exposeInternal is set.
func newErrorHandler(logger *slog.Logger, exposeInternal bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *apperrors.AppError
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &echoErr):
			appErr = fromEchoError(echoErr)
		default:
			appErr = apperrors.NewInternal(err)
		}

		if appErr.Kind == apperrors.KindInternal || appErr.Kind == apperrors.KindRemoteService {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"kind", appErr.Kind,
				"status", appErr.Status,
				"path", c.Request().URL.Path,
				"error", err,
			)
		}

		body := appErr.ToErrorResponse(exposeInternal)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.Status)
			return
		}
		_ = c.JSON(appErr.Status, body)
	}
}

func fromEchoError(he *echo.HTTPError) *apperrors.AppError {
	msg, ok := he.Message.(string)
	if !ok || msg == "" {
		msg = http.StatusText(he.Code)
	}
	kind := apperrors.KindInternal
	switch {
	case he.Code == http.StatusUnauthorized:
		kind = apperrors.KindAuth
	case he.Code == http.StatusNotFound:
		kind = apperrors.KindNotFound
	case he.Code == http.StatusConflict:
		kind = apperrors.KindConflict
	case he.Code >= 400 && he.Code < 500:
		kind = apperrors.KindValidation
	}
	return &apperrors.AppError{Kind: kind, Status: he.Code, Message: msg, Internal: he.Internal}
}
