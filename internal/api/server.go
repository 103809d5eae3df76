// Package api serves the relay HTTP surface: contact sync, message writes,
// read receipts and user profiles.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// NewRouter builds the Echo instance with recovery, request logging, the
// response envelope and the given handlers.
func NewRouter(logger *zap.Logger, handlers ...Handler) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	e.Use(openCORS)

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}
	return e
}

func openCORS(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		return next(c)
	}
}

// errorHandler writes every failure as {"data":{"error": msg}}. Errors that
// are not *echo.HTTPError are logged and reported as a generic 500.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := internalErrorMessage
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
			if code >= http.StatusInternalServerError {
				logger.Error("request failed", zap.Int("status", code), zap.Error(err))
			}
		} else {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}

		c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, Envelope{Data: ErrorBody{Error: msg}})
		}
		if err != nil {
			logger.Warn("write error response", zap.Error(err))
		}
	}
}
