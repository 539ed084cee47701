package service

import (
	"context"
	"errors"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"github.com/cupidlink/mail-dispatcher/internal/repository"
	"go.uber.org/zap"
)

// Tracker wraps the delivery ledger with a degrade-and-continue policy: a
// failing or unprovisioned store logs a warning and becomes a no-op, so the
// pipeline keeps delivering (at-least-once instead of at-most-once).
type Tracker struct {
	records repository.TrackingRepository
	logger  *zap.Logger
}

func NewTracker(records repository.TrackingRepository, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{records: records, logger: logger}
}

// Get returns the ledger row for a notification, or ok=false when no row
// exists or the store is unavailable.
func (t *Tracker) Get(ctx context.Context, notificationID string) (*domain.TrackingRecord, bool) {
	if t == nil || t.records == nil {
		return nil, false
	}

	record, err := t.records.GetByNotificationID(ctx, notificationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		t.warn("tracking lookup failed", notificationID, err)
		return nil, false
	}
	return record, true
}

func (t *Tracker) MarkPending(ctx context.Context, notificationID string) {
	if t == nil || t.records == nil {
		return
	}
	if err := t.records.MarkPending(ctx, notificationID); err != nil {
		t.warn("failed to mark tracking record pending", notificationID, err)
	}
}

func (t *Tracker) MarkSent(ctx context.Context, notificationID string, sentAt time.Time) {
	if t == nil || t.records == nil {
		return
	}
	if err := t.records.MarkSent(ctx, notificationID, sentAt); err != nil {
		t.warn("failed to mark tracking record sent", notificationID, err)
	}
}

func (t *Tracker) MarkFailed(ctx context.Context, notificationID string) {
	if t == nil || t.records == nil {
		return
	}
	if err := t.records.MarkFailed(ctx, notificationID); err != nil {
		t.warn("failed to mark tracking record failed", notificationID, err)
	}
}

func (t *Tracker) MarkRetry(ctx context.Context, notificationID string) {
	if t == nil || t.records == nil {
		return
	}
	if err := t.records.MarkRetry(ctx, notificationID); err != nil {
		t.warn("failed to mark tracking record for retry", notificationID, err)
	}
}

func (t *Tracker) warn(msg, notificationID string, err error) {
	t.logger.Warn(msg,
		zap.String("notificationId", notificationID),
		zap.Error(err),
	)
}
