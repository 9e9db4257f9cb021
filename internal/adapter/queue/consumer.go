package queue

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/mehmetymw/failover-dispatch/internal/port"
	"github.com/mehmetymw/failover-dispatch/pkg/tracing"
)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	Group   string
	Logger  *zap.Logger
}

const commitTimeout = 5 * time.Second

type Consumer struct {
	cfg    ConsumerConfig
	reader *kafka.Reader
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Consumer{
		cfg:    cfg,
		logger: cfg.Logger,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.Group,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			StartOffset:    kafka.FirstOffset,
		}),
	}
}

// Start consumes until ctx is done or Stop is called. Calling Start after
// Stop returns immediately.
func (c *Consumer) Start(ctx context.Context, handler port.DispatchHandler) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return context.Canceled
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go c.consume(ctx, handler)

	c.logger.Info("kafka consumer started",
		zap.Strings("brokers", c.cfg.Brokers),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.Group),
	)

	<-ctx.Done()
	return ctx.Err()
}

func (c *Consumer) Stop(_ context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	return c.reader.Close()
}

func (c *Consumer) consume(ctx context.Context, handler port.DispatchHandler) {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch message failed",
				zap.String("topic", c.cfg.Topic),
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}

		c.handle(ctx, msg, handler)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler port.DispatchHandler) {
	payload, message, err := decodePayload(msg.Value)
	if err != nil {
		c.logger.Error("invalid dispatch payload, dropping",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		c.commit(ctx, msg)
		return
	}

	msgCtx := ctx
	if len(payload.Carrier) > 0 {
		msgCtx = propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier(payload.Carrier))
	}

	msgCtx, span := tracing.Tracer().Start(msgCtx, "kafka.consume")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.source.name", msg.Topic),
		attribute.String("messaging.operation.type", "receive"),
		attribute.String("messaging.consumer.group.id", c.cfg.Group),
		attribute.String("dispatch.idempotency_key", payload.IdempotencyKey),
		attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		attribute.Int("messaging.kafka.destination.partition", msg.Partition),
	)

	handlerErr := handler(msgCtx, payload.IdempotencyKey, message)
	if handlerErr != nil {
		tracing.RecordError(span, handlerErr)
	}

	if !shouldCommit(handlerErr, ctx.Err() != nil) {
		c.logger.Info("dispatch interrupted by shutdown, leaving offset for redelivery",
			zap.String("idempotency_key", payload.IdempotencyKey),
			zap.Int64("offset", msg.Offset),
		)
		return
	}
	if handlerErr != nil {
		c.logger.Error("dispatch from queue failed",
			zap.String("idempotency_key", payload.IdempotencyKey),
			zap.Error(handlerErr),
		)
	}

	c.commit(ctx, msg)
}

// commit outlives shutdown so a finished dispatch is not redelivered.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("commit offset failed",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

// shouldCommit reports whether a handled record is done. A dispatch cut
// short by shutdown left its key unknown and must be redelivered. Any
// other outcome, including a rejected request, is final.
func shouldCommit(handlerErr error, shuttingDown bool) bool {
	return handlerErr == nil || !shuttingDown
}
