package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/responda/responda/internal/platform/metrics"
)

// Metrics records request count, latency and in-flight requests. The path
// label is the route pattern so ids do not blow up cardinality.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			metrics.HTTPRequestInFlight.Inc()
			defer metrics.HTTPRequestInFlight.Dec()

			err := next(c)

			status := statusOf(c, err)
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.HTTPRequestTotals.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
