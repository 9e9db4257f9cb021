package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetymw/failover-dispatch/internal/adapter/http/middleware"
)

type RouterDeps struct {
	DispatchHandler  *DispatchHandler
	HealthHandler    *HealthHandler
	MetricsHandler   *MetricsHandler
	WebSocketHandler *WebSocketHandler
	Logger           *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Tracing())
	r.Use(middleware.Logging(deps.Logger))

	r.GET("/health", deps.HealthHandler.Liveness)
	r.GET("/health/ready", deps.HealthHandler.Readiness)

	if deps.WebSocketHandler != nil {
		r.GET("/ws", deps.WebSocketHandler.Handle)
	}

	v1 := r.Group("/api/v1")
	{
		dispatches := v1.Group("/dispatches")
		{
			dispatches.POST("", deps.DispatchHandler.Create)
			dispatches.POST("/batch", deps.DispatchHandler.CreateBatch)
			dispatches.GET("/:key", deps.DispatchHandler.GetStatus)
			dispatches.GET("/:key/attempts", deps.DispatchHandler.ListAttempts)
		}

		v1.GET("/metrics", deps.MetricsHandler.GetMetrics)
	}

	return r
}
