package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
	"github.com/mehmetymw/failover-dispatch/pkg/circuitbreaker"
)

// BreakerProvider guards a provider with a circuit breaker so that a backend
// which keeps failing is skipped quickly while its circuit is open.
type BreakerProvider struct {
	next    port.Provider
	breaker *circuitbreaker.Breaker
}

// errCallerGone marks failures that happened because the dispatch itself was
// cancelled or timed out.
var errCallerGone = errors.New("caller cancelled")

// BreakerSettings are the defaults for provider circuits. Neither a
// rejected message nor an abandoned call says anything about the backend's
// health, so neither trips the circuit.
func BreakerSettings() circuitbreaker.Settings {
	s := circuitbreaker.DefaultSettings()
	s.Ignored = []error{domain.ErrProviderRejected, errCallerGone}
	return s
}

func NewBreakerProvider(next port.Provider, breaker *circuitbreaker.Breaker) *BreakerProvider {
	if breaker == nil {
		breaker = circuitbreaker.NewWithSettings(next.Name(), BreakerSettings())
	}
	return &BreakerProvider{next: next, breaker: breaker}
}

func (p *BreakerProvider) Name() string { return p.next.Name() }

func (p *BreakerProvider) State() string { return p.breaker.State() }

func (p *BreakerProvider) Send(ctx context.Context, msg *domain.Message) (*port.ProviderResponse, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		resp, err := p.next.Send(ctx, msg)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return resp, err
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCircuitOpen, p.next.Name())
		}
		return nil, err
	}

	resp, _ := result.(*port.ProviderResponse)
	return resp, nil
}
