package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/turtacn/ccs/internal/infrastructure/monitoring"
	"github.com/turtacn/ccs/pkg/logger"
)

// Observability records request metrics, opens a span per request, and logs
// the access line.
func Observability(metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	tracer := otel.Tracer("ccs/http")
	accessLog := log.WithComponent("http")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+path,
			oteltrace.WithSpanKind(oteltrace.SpanKindServer),
			oteltrace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", path),
			),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)

		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		span.End()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())

		if status >= 400 {
			accessLog.Warn(ctx, "request finished",
				logger.String("method", c.Request.Method),
				logger.String("path", path),
				logger.Int("status", status),
				logger.Duration("elapsed", elapsed),
				logger.String("client_ip", c.ClientIP()),
			)
		} else {
			accessLog.Debug(ctx, "request finished",
				logger.String("method", c.Request.Method),
				logger.String("path", path),
				logger.Int("status", status),
				logger.Duration("elapsed", elapsed),
			)
		}
	}
}
