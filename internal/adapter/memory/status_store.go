package memory

import (
	"fmt"
	"sync"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

// StatusStore keeps terminal delivery outcomes per idempotency key for the
// lifetime of the process.
type StatusStore struct {
	mu       sync.RWMutex
	statuses map[string]domain.DeliveryStatus
}

func NewStatusStore() *StatusStore {
	return &StatusStore{
		statuses: make(map[string]domain.DeliveryStatus),
	}
}

func (s *StatusStore) Get(key string) domain.DeliveryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.statuses[key]; ok {
		return st
	}
	return domain.StatusUnknown
}

func (s *StatusStore) IsFinalized(key string) bool {
	return s.Get(key).IsFinal()
}

func (s *StatusStore) MarkSent(key string) error {
	return s.finalize(key, domain.StatusSent)
}

func (s *StatusStore) MarkFailed(key string) error {
	return s.finalize(key, domain.StatusFailed)
}

func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses)
}

func (s *StatusStore) finalize(key string, status domain.DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.statuses[key]
	if ok && current != status {
		return fmt.Errorf("%w: key %q is %s, cannot mark %s", domain.ErrInvariantViolation, key, current, status)
	}

	s.statuses[key] = status
	return nil
}
