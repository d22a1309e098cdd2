package handler

import (
	"github.com/labstack/echo/v4"

	"experts-service/prometheus"
)

// MetricsHandler exposes the Prometheus metrics endpoint
func MetricsHandler(c echo.Context) error {
	prometheus.GetPrometheusHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}
