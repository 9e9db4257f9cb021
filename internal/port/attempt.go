package port

import (
	"context"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

type AttemptRecorder interface {
	Record(ctx context.Context, attempt *domain.Attempt) error
}

type AttemptReader interface {
	ListByKey(ctx context.Context, key string) ([]*domain.Attempt, error)
}
