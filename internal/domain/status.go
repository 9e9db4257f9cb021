package domain

import (
	"fmt"
	"strings"
)

// DeliveryStatus is the lifecycle state of one idempotency key.
// unknown -> sent | failed, and both of those are terminal.
type DeliveryStatus string

const (
	StatusUnknown DeliveryStatus = "unknown"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsFinal() bool {
	return s == StatusSent || s == StatusFailed
}

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case StatusUnknown, StatusSent, StatusFailed:
		return true
	}
	return false
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}
