package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the ledger state of a notification's email delivery.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
	StatusRetry   DeliveryStatus = "retry"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusRetry:
		return true
	}
	return false
}

// IsTerminal reports whether no further delivery attempt may follow.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// CanTransition reports whether the ledger may move from s to next.
// pending and retry rows may advance (or be re-marked pending on a later
// processing pass); sent and failed rows are immutable.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	if !next.IsValid() {
		return false
	}
	switch s {
	case StatusPending, StatusRetry:
		return true
	}
	return false
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// TrackingRecord is the per-notification delivery ledger row. At most one
// record exists per notification id; retry count only grows; sent_at is set
// exactly once.
type TrackingRecord struct {
	ID             string
	NotificationID string
	Status         DeliveryStatus
	RetryCount     int
	SentAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
