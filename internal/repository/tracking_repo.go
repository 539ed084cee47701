package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// nonTerminalStatuses guards every mutation: sent and failed rows never move.
var nonTerminalStatuses = []domain.DeliveryStatus{
	domain.StatusPending,
	domain.StatusRetry,
}

// TrackingRepository owns the per-notification delivery ledger.
type TrackingRepository interface {
	GetByNotificationID(ctx context.Context, notificationID string) (*domain.TrackingRecord, error)
	// MarkPending lazily creates the ledger row on first processing attempt
	// and re-marks an existing non-terminal row as pending.
	MarkPending(ctx context.Context, notificationID string) error
	// MarkSent finalizes the row and stamps sent_at exactly once.
	MarkSent(ctx context.Context, notificationID string, sentAt time.Time) error
	// MarkFailed finalizes the row without a sent timestamp.
	MarkFailed(ctx context.Context, notificationID string) error
	// MarkRetry re-arms the row for a later tick and increments retry_count.
	MarkRetry(ctx context.Context, notificationID string) error
}

type GormTrackingRepo struct {
	db *gorm.DB
}

func NewGormTrackingRepo(db *gorm.DB) *GormTrackingRepo {
	return &GormTrackingRepo{db: db}
}

func (r *GormTrackingRepo) GetByNotificationID(ctx context.Context, notificationID string) (*domain.TrackingRecord, error) {
	var model TrackingRecordModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return trackingModelToDomain(&model), nil
}

func (r *GormTrackingRepo) MarkPending(ctx context.Context, notificationID string) error {
	model := &TrackingRecordModel{
		ID:             uuid.NewString(),
		NotificationID: notificationID,
		Status:         domain.StatusPending,
	}

	// Insert-or-ignore keyed by notification_id keeps the at-most-one-row
	// invariant under concurrent pollers.
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		}).
		Create(model).Error; err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&TrackingRecordModel{}).
		Where("notification_id = ? AND status IN ?", notificationID, nonTerminalStatuses).
		Update("status", domain.StatusPending)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// The row exists but is terminal; the pipeline must not reprocess it.
		return domain.ErrConflict
	}
	return nil
}

func (r *GormTrackingRepo) MarkSent(ctx context.Context, notificationID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&TrackingRecordModel{}).
		Where("notification_id = ? AND status IN ?", notificationID, nonTerminalStatuses).
		Updates(map[string]any{
			"status":  domain.StatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormTrackingRepo) MarkFailed(ctx context.Context, notificationID string) error {
	result := r.db.WithContext(ctx).
		Model(&TrackingRecordModel{}).
		Where("notification_id = ? AND status IN ?", notificationID, nonTerminalStatuses).
		Update("status", domain.StatusFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormTrackingRepo) MarkRetry(ctx context.Context, notificationID string) error {
	result := r.db.WithContext(ctx).
		Model(&TrackingRecordModel{}).
		Where("notification_id = ? AND status IN ?", notificationID, nonTerminalStatuses).
		Updates(map[string]any{
			"status":      domain.StatusRetry,
			"retry_count": gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
