package domain

import "errors"

var (
	ErrEmptyIdempotencyKey   = errors.New("idempotency key is required")
	ErrIdempotencyKeyTooLong = errors.New("idempotency key is too long")
	ErrEmptyRecipient        = errors.New("recipient is required")
	ErrEmptyBody             = errors.New("body is required")
	ErrNilMessage            = errors.New("message is required")
	ErrInvalidStatus         = errors.New("invalid delivery status")
	ErrNoProviders           = errors.New("at least one provider is required")
	ErrProviderUnavailable   = errors.New("provider unavailable")
	ErrProviderRejected      = errors.New("provider rejected message")
	ErrCircuitOpen           = errors.New("circuit breaker is open")
	ErrDispatchNotFound      = errors.New("dispatch not found")

	// ErrInvariantViolation marks a key being finalized with two different
	// outcomes. It only happens when per-key serialization is broken.
	ErrInvariantViolation = errors.New("delivery status invariant violated")
)
