package domain

import (
	"fmt"
	"strings"
)

// MaxIdempotencyKeyLength matches the dispatch_attempts.idempotency_key column.
const MaxIdempotencyKeyLength = 255

type Message struct {
	Recipient string
	Subject   string
	Body      string
	Metadata  map[string]string
}

func NewMessage(recipient, subject, body string, metadata map[string]string) (*Message, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, ErrEmptyRecipient
	}
	if body == "" {
		return nil, ErrEmptyBody
	}

	return &Message{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Metadata:  metadata,
	}, nil
}

// ValidateIdempotencyKey trims the key and rejects blank or oversized values.
func ValidateIdempotencyKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrEmptyIdempotencyKey
	}
	if len(trimmed) > MaxIdempotencyKeyLength {
		return "", fmt.Errorf("%w: %d bytes, max %d", ErrIdempotencyKeyTooLong, len(trimmed), MaxIdempotencyKeyLength)
	}
	return trimmed, nil
}
