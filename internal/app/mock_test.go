package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
)

var errScripted = errors.New("scripted provider failure")

// callLog captures the order providers were invoked in across a test.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// scriptedProvider returns outcomes in order; the last outcome repeats once
// the script runs out. A nil outcome is a success.
type scriptedProvider struct {
	name     string
	outcomes []error
	delay    time.Duration
	onSend   func(ctx context.Context, msg *domain.Message)
	log      *callLog

	mu    sync.Mutex
	calls int
}

func newScriptedProvider(name string, log *callLog, outcomes ...error) *scriptedProvider {
	return &scriptedProvider{name: name, outcomes: outcomes, log: log}
}

func alwaysFails(name string, log *callLog) *scriptedProvider {
	return newScriptedProvider(name, log, errScripted)
}

func alwaysSucceeds(name string, log *callLog) *scriptedProvider {
	return newScriptedProvider(name, log, nil)
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Send(ctx context.Context, msg *domain.Message) (*port.ProviderResponse, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	p.mu.Unlock()

	if p.log != nil {
		p.log.add(p.name)
	}
	if p.onSend != nil {
		p.onSend(ctx, msg)
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	var outcome error
	if len(p.outcomes) > 0 {
		if idx >= len(p.outcomes) {
			idx = len(p.outcomes) - 1
		}
		outcome = p.outcomes[idx]
	}
	if outcome != nil {
		return nil, outcome
	}

	return &port.ProviderResponse{
		MessageID: p.name + "-msg",
		Status:    "accepted",
		Timestamp: "2026-01-01T00:00:00Z",
	}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type mockBroadcaster struct {
	mu         sync.Mutex
	broadcasts []broadcastEvent
}

type broadcastEvent struct {
	Key       string
	Status    string
	Provider  string
	Timestamp string
}

func (m *mockBroadcaster) Broadcast(key, status, provider, timestamp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, broadcastEvent{
		Key:       key,
		Status:    status,
		Provider:  provider,
		Timestamp: timestamp,
	})
}

func (m *mockBroadcaster) events() []broadcastEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]broadcastEvent, len(m.broadcasts))
	copy(out, m.broadcasts)
	return out
}

type mockAttemptRecorder struct {
	mu        sync.Mutex
	attempts  []*domain.Attempt
	recordErr error
}

func (m *mockAttemptRecorder) Record(_ context.Context, a *domain.Attempt) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

// conflictingStore reports every key as unknown and refuses to finalize,
// simulating a store whose serialization has been broken.
type conflictingStore struct{}

func (conflictingStore) Get(string) domain.DeliveryStatus { return domain.StatusUnknown }
func (conflictingStore) IsFinalized(string) bool          { return false }
func (conflictingStore) MarkSent(key string) error {
	return errors.Join(domain.ErrInvariantViolation, errors.New("already failed: "+key))
}
func (conflictingStore) MarkFailed(key string) error {
	return errors.Join(domain.ErrInvariantViolation, errors.New("already sent: "+key))
}
