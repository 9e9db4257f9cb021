package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mehmetymw/failover-dispatch/internal/app"
	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
)

type DispatchHandler struct {
	coordinator *app.DispatchCoordinator
	publisher   port.DispatchPublisher
	attempts    port.AttemptReader
	timeout     time.Duration
}

// NewDispatchHandler wires the dispatch endpoints. publisher and attempts
// are optional; without them async dispatch and the attempt log are disabled.
func NewDispatchHandler(coordinator *app.DispatchCoordinator, publisher port.DispatchPublisher, attempts port.AttemptReader, timeout time.Duration) *DispatchHandler {
	return &DispatchHandler{
		coordinator: coordinator,
		publisher:   publisher,
		attempts:    attempts,
		timeout:     timeout,
	}
}

func (h *DispatchHandler) Create(c *gin.Context) {
	var req CreateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = c.GetHeader(IdempotencyKeyHeader)
	}
	key, err := domain.ValidateIdempotencyKey(key)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	msg, err := req.ToMessage()
	if err != nil {
		handleDomainError(c, err)
		return
	}

	if c.Query("async") == "true" {
		h.enqueue(c, key, msg)
		return
	}

	ctx, cancel := h.dispatchContext(c.Request.Context())
	defer cancel()

	result, err := h.coordinator.Dispatch(ctx, msg, key)
	if err != nil {
		if result != nil && isContextError(err) {
			resp := NewDispatchResponse(result)
			resp.Error = err.Error()
			c.JSON(http.StatusGatewayTimeout, resp)
			return
		}
		handleDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewDispatchResponse(result))
}

func (h *DispatchHandler) CreateBatch(c *gin.Context) {
	var req CreateBatchDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	reqs := make([]app.DispatchRequest, len(req.Dispatches))
	for i, d := range req.Dispatches {
		key, err := domain.ValidateIdempotencyKey(d.IdempotencyKey)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		msg, err := d.ToMessage()
		if err != nil {
			handleDomainError(c, err)
			return
		}
		reqs[i] = app.DispatchRequest{IdempotencyKey: key, Message: msg}
	}

	ctx, cancel := h.dispatchContext(c.Request.Context())
	defer cancel()

	items := h.coordinator.DispatchBatch(ctx, reqs, req.Concurrency)
	c.JSON(http.StatusOK, NewBatchDispatchResponse(reqs, items))
}

func (h *DispatchHandler) GetStatus(c *gin.Context) {
	key, err := domain.ValidateIdempotencyKey(c.Param("key"))
	if err != nil {
		handleDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		IdempotencyKey: key,
		Status:         h.coordinator.GetStatus(key).String(),
	})
}

func (h *DispatchHandler) ListAttempts(c *gin.Context) {
	if h.attempts == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "attempt log is not configured"})
		return
	}

	key, err := domain.ValidateIdempotencyKey(c.Param("key"))
	if err != nil {
		handleDomainError(c, err)
		return
	}

	attempts, err := h.attempts.ListByKey(c.Request.Context(), key)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	if len(attempts) == 0 {
		handleDomainError(c, domain.ErrDispatchNotFound)
		return
	}

	c.JSON(http.StatusOK, ListResponse[AttemptResponse]{Data: NewAttemptResponses(attempts)})
}

func (h *DispatchHandler) enqueue(c *gin.Context, key string, msg *domain.Message) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "async dispatch is not configured"})
		return
	}

	if err := h.publisher.Enqueue(c.Request.Context(), key, msg); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "failed to enqueue dispatch"})
		return
	}

	c.JSON(http.StatusAccepted, StatusResponse{
		IdempotencyKey: key,
		Status:         h.coordinator.GetStatus(key).String(),
	})
}

func (h *DispatchHandler) dispatchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func handleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDispatchNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrEmptyIdempotencyKey),
		errors.Is(err, domain.ErrIdempotencyKeyTooLong),
		errors.Is(err, domain.ErrEmptyRecipient),
		errors.Is(err, domain.ErrEmptyBody),
		errors.Is(err, domain.ErrNilMessage),
		errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case isContextError(err):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
