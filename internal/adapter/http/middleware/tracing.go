package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "failover-dispatch"

// Tracing starts a server span per request. Health probes are not traced.
func Tracing() gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(skipHealth))
}

func skipHealth(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/health")
}
