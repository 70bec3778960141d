package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/metrics"
)

// RequestLogger logs one structured line per request and records the
// request duration histogram.
func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error response so the status is final
				c.Error(err)
			}
			req := c.Request()
			status := c.Response().Status
			elapsed := time.Since(start)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPDuration.WithLabelValues(req.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			fields := map[string]interface{}{
				"method":      req.Method,
				"route":       route,
				"uri":         req.RequestURI,
				"status":      status,
				"duration_ms": elapsed.Milliseconds(),
				"user":        currentUserID(c),
				"request_id":  c.Response().Header().Get(echo.HeaderXRequestID),
			}
			switch {
			case status >= 500:
				log.Error("request", fields)
			case status >= 400:
				log.Warn("request", fields)
			default:
				log.Info("request", fields)
			}
			return nil
		}
	}
}
