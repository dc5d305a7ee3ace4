package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/atqamz/kogase-engine/internal/server"

// RequestMetrics records one duration sample per request, labelled by route template,
// method and status. Unmatched routes are recorded as "unmatched".
func RequestMetrics() gin.HandlerFunc {
	duration, err := otel.Meter(meterName).Float64Histogram("kogase.http.server.duration",
		metric.WithDescription("HTTP request latency."), metric.WithUnit("ms"))
	if err != nil {
		log.Printf("server: request histogram: %v", err)
		duration = noop.Float64Histogram{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		duration.Record(c.Request.Context(), float64(time.Since(start).Microseconds())/1000,
			metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.status_code", strconv.Itoa(c.Writer.Status())),
			))
	}
}
