package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "Corexia/pkg/logger"
)

// RequestLogging logs each request at debug, or at warn when it took longer than slow.
func RequestLogging(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			latency := time.Since(start)
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeLabel(c)),
				applogger.Int("status", c.Response().Status),
				applogger.String("remote", c.RealIP()),
				applogger.Duration("latency", latency),
			}
			if err != nil {
				fields = append(fields, applogger.Error(err))
			}
			if slow > 0 && latency >= slow {
				l.Warn("http request slow", fields...)
				return err
			}
			l.Debug("http request", fields...)
			return err
		}
	}
}
