package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mehmetymw/failover-dispatch/internal/adapter/ws"
)

// WebSocketHandler upgrades clients that want to follow dispatch outcomes.
type WebSocketHandler struct {
	hub *ws.Hub
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	if err := h.hub.Accept(c.Writer, c.Request); err != nil {
		_ = c.Error(err)
		if !c.Writer.Written() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "websocket upgrade failed"})
		}
	}
}
