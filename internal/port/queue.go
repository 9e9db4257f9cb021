package port

import (
	"context"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

type DispatchPublisher interface {
	Enqueue(ctx context.Context, key string, msg *domain.Message) error
	Close() error
}

type DispatchHandler func(ctx context.Context, key string, msg *domain.Message) error

type DispatchConsumer interface {
	Start(ctx context.Context, handler DispatchHandler) error
	Stop(ctx context.Context) error
}
