package provider

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
)

// MockProvider simulates a delivery backend that fails with a fixed
// probability. It is meant for demos and local runs.
type MockProvider struct {
	name        string
	failureRate float64
	latency     time.Duration

	mu     sync.Mutex
	random func() float64
}

func NewMockProvider(name string, failureRate float64, latency time.Duration) *MockProvider {
	return &MockProvider{
		name:        name,
		failureRate: failureRate,
		latency:     latency,
		random:      rand.Float64,
	}
}

// WithRandom swaps the random source, used to make outcomes deterministic.
func (p *MockProvider) WithRandom(random func() float64) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.random = random
	return p
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Send(ctx context.Context, msg *domain.Message) (*port.ProviderResponse, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	p.mu.Lock()
	roll := p.random()
	p.mu.Unlock()

	if roll < p.failureRate {
		return nil, fmt.Errorf("%w: %s failed to send to %s", domain.ErrProviderUnavailable, p.name, msg.Recipient)
	}

	return &port.ProviderResponse{
		MessageID: uuid.NewString(),
		Status:    "accepted",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
