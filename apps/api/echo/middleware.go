package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	metricsvc "github.com/trezcool/notex/services/metrics"
)

// metricsMiddleware counts requests per route pattern and status code.
func metricsMiddleware(metrics *metricsvc.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil && !ctx.Response().Committed {
				ctx.Error(err) // commit the status code
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
