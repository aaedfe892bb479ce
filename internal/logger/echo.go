package logger

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/labstack/echo/v4"
)

// EchoLogr is an echo access-log middleware writing through logr.
func EchoLogr(log logr.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) { //nolint:nonamedreturns // echo convention
			start := time.Now()
			path := c.Request().URL.Path
			query := c.Request().URL.RawQuery
			if err = next(c); err != nil {
				c.Error(err)
			}

			latency := time.Since(start) / time.Millisecond
			if err != nil {
				log.Error(err, path, "latency", latency)
			} else {
				log.Info(path,
					"status", c.Response().Status,
					"method", c.Request().Method,
					"path", path,
					"query", query,
					"ip", c.RealIP(),
					"user-agent", c.Request().UserAgent(),
					"latency", latency,
				)
			}

			return
		}
	}
}
