package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
	"github.com/mehmetymw/failover-dispatch/pkg/logger"
	"github.com/mehmetymw/failover-dispatch/pkg/tracing"
)

const defaultRetryLimit = 1

// DispatchCoordinator sends a message through an ordered list of providers,
// retrying the whole list up to retryLimit rounds, and finalizes each
// idempotency key exactly once.
type DispatchCoordinator struct {
	store       port.StatusStore
	providers   []port.Provider
	retryLimit  int
	locks       *keyLocker
	broadcaster port.StatusBroadcaster
	recorder    port.AttemptRecorder
	metrics     *MetricsCollector
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*DispatchCoordinator)

// WithRetryLimit sets the number of full passes over the provider list.
// Values below 1 fall back to 1.
func WithRetryLimit(n int) Option {
	return func(c *DispatchCoordinator) {
		if n < 1 {
			n = defaultRetryLimit
		}
		c.retryLimit = n
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *DispatchCoordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithBroadcaster(b port.StatusBroadcaster) Option {
	return func(c *DispatchCoordinator) {
		if b != nil {
			c.broadcaster = b
		}
	}
}

func WithAttemptRecorder(r port.AttemptRecorder) Option {
	return func(c *DispatchCoordinator) {
		c.recorder = r
	}
}

func WithMetrics(m *MetricsCollector) Option {
	return func(c *DispatchCoordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *DispatchCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewDispatchCoordinator(store port.StatusStore, providers []port.Provider, opts ...Option) (*DispatchCoordinator, error) {
	if len(providers) == 0 {
		return nil, domain.ErrNoProviders
	}

	ordered := make([]port.Provider, len(providers))
	copy(ordered, providers)

	c := &DispatchCoordinator{
		store:       store,
		providers:   ordered,
		retryLimit:  defaultRetryLimit,
		locks:       newKeyLocker(),
		broadcaster: noopBroadcaster{},
		metrics:     NewMetricsCollector(),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *DispatchCoordinator) RetryLimit() int { return c.retryLimit }

func (c *DispatchCoordinator) Metrics() *MetricsCollector { return c.metrics }

func (c *DispatchCoordinator) GetStatus(key string) domain.DeliveryStatus {
	return c.store.Get(strings.TrimSpace(key))
}

// Dispatch delivers msg at most once for key. Provider failures never come
// back as errors: the result carries sent or failed. An error is returned
// only for invalid input or when ctx ends before the key is finalized, in
// which case the status stays unknown and the partial result lists the
// attempts made so far.
func (c *DispatchCoordinator) Dispatch(ctx context.Context, msg *domain.Message, key string) (*domain.DispatchResult, error) {
	key, err := domain.ValidateIdempotencyKey(key)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.ErrNilMessage
	}

	ctx, span := tracing.Tracer().Start(ctx, "dispatch.run")
	defer span.End()

	span.SetAttributes(
		attribute.String("dispatch.idempotency_key", key),
		attribute.Int("dispatch.provider_count", len(c.providers)),
		attribute.Int("dispatch.retry_limit", c.retryLimit),
	)

	unlock, err := c.locks.Lock(ctx, key)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	if c.store.IsFinalized(key) {
		status := c.store.Get(key)
		c.metrics.RecordDuplicate()
		span.SetAttributes(attribute.Bool("dispatch.duplicate", true))
		c.logger.Info("dispatch already finalized, skipping",
			zap.String("idempotency_key", key),
			zap.String("status", status.String()),
			zap.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
		)
		return &domain.DispatchResult{
			IdempotencyKey: key,
			Status:         status,
			Duplicate:      true,
		}, nil
	}

	result := &domain.DispatchResult{
		IdempotencyKey: key,
		Status:         domain.StatusUnknown,
	}

	for round := 1; round <= c.retryLimit; round++ {
		for _, provider := range c.providers {
			if err := ctx.Err(); err != nil {
				return c.abort(ctx, span, result, err)
			}

			attempt := c.attempt(ctx, key, round, provider, msg)
			result.Attempts = append(result.Attempts, attempt)

			if attempt.Succeeded {
				result.Status = domain.StatusSent
				result.Provider = provider.Name()
				c.finalize(ctx, key, domain.StatusSent, provider.Name())

				span.SetAttributes(
					attribute.String("dispatch.status", string(domain.StatusSent)),
					attribute.String("dispatch.provider", provider.Name()),
					attribute.Int("dispatch.attempts", len(result.Attempts)),
				)
				return result, nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return c.abort(ctx, span, result, err)
	}

	result.Status = domain.StatusFailed
	c.finalize(ctx, key, domain.StatusFailed, "")

	span.SetAttributes(
		attribute.String("dispatch.status", string(domain.StatusFailed)),
		attribute.Int("dispatch.attempts", len(result.Attempts)),
	)
	c.logger.Error("dispatch failed with all providers",
		zap.String("idempotency_key", key),
		zap.Int("rounds", c.retryLimit),
		zap.Int("attempts", len(result.Attempts)),
		zap.String("trace_id", tracing.TraceIDFromContext(ctx)),
	)

	return result, nil
}

func (c *DispatchCoordinator) attempt(ctx context.Context, key string, round int, provider port.Provider, msg *domain.Message) *domain.Attempt {
	ctx, span := tracing.Tracer().Start(ctx, "dispatch.attempt")
	defer span.End()

	span.SetAttributes(
		attribute.String("dispatch.idempotency_key", key),
		attribute.String("dispatch.provider", provider.Name()),
		attribute.Int("dispatch.round", round),
	)

	start := c.now()
	resp, sendErr := provider.Send(ctx, msg)
	latency := c.now().Sub(start)

	attempt := domain.NewAttempt(key, round, provider.Name(), latency, start)

	if sendErr != nil {
		attempt.MarkFailed(sendErr)
		c.metrics.RecordFailure(provider.Name(), latency)
		tracing.RecordError(span, sendErr)

		c.logger.Warn("provider attempt failed",
			zap.String("idempotency_key", key),
			zap.Int("round", round),
			zap.String("provider", provider.Name()),
			zap.Error(sendErr),
			zap.String("trace_id", tracing.TraceIDFromContext(ctx)),
		)
	} else {
		messageID := ""
		if resp != nil {
			messageID = resp.MessageID
		}
		attempt.MarkSucceeded(messageID)
		c.metrics.RecordSuccess(provider.Name(), latency)
		span.SetAttributes(attribute.String("dispatch.provider_message_id", messageID))
	}

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, attempt); err != nil {
			c.logger.Error("failed to record attempt",
				zap.String("idempotency_key", key),
				zap.String("provider", provider.Name()),
				zap.Error(err),
			)
		}
	}

	return attempt
}

func (c *DispatchCoordinator) finalize(ctx context.Context, key string, status domain.DeliveryStatus, provider string) {
	var err error
	switch status {
	case domain.StatusSent:
		err = c.store.MarkSent(key)
	case domain.StatusFailed:
		err = c.store.MarkFailed(key)
	}

	if err != nil {
		c.logger.Error("failed to finalize dispatch",
			zap.String("idempotency_key", key),
			zap.String("status", status.String()),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrInvariantViolation) {
			panic(err)
		}
	}

	c.metrics.RecordOutcome(status)
	c.broadcaster.Broadcast(key, status.String(), provider, c.now().UTC().Format(time.RFC3339))

	c.logger.Info("dispatch finalized",
		zap.String("idempotency_key", key),
		zap.String("status", status.String()),
		zap.String("provider", provider),
		zap.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
		zap.String("trace_id", tracing.TraceIDFromContext(ctx)),
	)
}

func (c *DispatchCoordinator) abort(ctx context.Context, span trace.Span, result *domain.DispatchResult, err error) (*domain.DispatchResult, error) {
	span.SetAttributes(attribute.Bool("dispatch.cancelled", true))
	tracing.RecordError(span, err)
	c.logger.Warn("dispatch cancelled before finalization",
		zap.String("idempotency_key", result.IdempotencyKey),
		zap.Int("attempts", len(result.Attempts)),
		zap.Error(err),
		zap.String("trace_id", tracing.TraceIDFromContext(ctx)),
	)
	return result, err
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, string, string, string) {}
