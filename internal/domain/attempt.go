package domain

import (
	"time"

	"github.com/google/uuid"
)

// Attempt records a single provider Send call made during a dispatch.
type Attempt struct {
	ID                uuid.UUID
	IdempotencyKey    string
	Round             int
	Provider          string
	Succeeded         bool
	Error             *string
	ProviderMessageID *string
	Latency           time.Duration
	CreatedAt         time.Time
}

func NewAttempt(key string, round int, provider string, latency time.Duration, at time.Time) *Attempt {
	return &Attempt{
		ID:             uuid.Must(uuid.NewV7()),
		IdempotencyKey: key,
		Round:          round,
		Provider:       provider,
		Latency:        latency,
		CreatedAt:      at.UTC(),
	}
}

func (a *Attempt) MarkSucceeded(providerMessageID string) {
	a.Succeeded = true
	if providerMessageID != "" {
		a.ProviderMessageID = &providerMessageID
	}
}

func (a *Attempt) MarkFailed(err error) {
	a.Succeeded = false
	msg := err.Error()
	a.Error = &msg
}

// DispatchResult is what a caller observes once Dispatch returns.
type DispatchResult struct {
	IdempotencyKey string
	Status         DeliveryStatus
	Provider       string
	Duplicate      bool
	Attempts       []*Attempt
}
