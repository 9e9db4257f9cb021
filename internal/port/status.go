package port

import "github.com/mehmetymw/failover-dispatch/internal/domain"

type StatusStore interface {
	Get(key string) domain.DeliveryStatus
	IsFinalized(key string) bool
	MarkSent(key string) error
	MarkFailed(key string) error
}

type StatusBroadcaster interface {
	Broadcast(key string, status string, provider string, timestamp string)
}
