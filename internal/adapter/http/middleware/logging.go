package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetymw/failover-dispatch/pkg/logger"
	"github.com/mehmetymw/failover-dispatch/pkg/tracing"
)

// IdempotencyKeyHeader is logged when present so a request can be matched to
// its dispatch.
const IdempotencyKeyHeader = "Idempotency-Key"

func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
			zap.String("trace_id", tracing.TraceIDFromContext(ctx)),
			zap.String("client_ip", c.ClientIP()),
		}
		if key := dispatchKey(c); key != "" {
			fields = append(fields, zap.String("idempotency_key", key))
		}

		switch {
		case len(c.Errors) > 0:
			fields = append(fields, zap.String("error", c.Errors.String()))
			log.Error("http request", fields...)
		case c.Writer.Status() >= 500:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

func dispatchKey(c *gin.Context) string {
	if key := c.Param("key"); key != "" {
		return key
	}
	return c.GetHeader(IdempotencyKeyHeader)
}
