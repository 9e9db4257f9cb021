package port

import (
	"context"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

type ProviderResponse struct {
	MessageID string
	Status    string
	Timestamp string
}

// Provider delivers a message through one backend. A nil error means the
// message was accepted; any error is treated as a failed attempt.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *domain.Message) (*ProviderResponse, error)
}
