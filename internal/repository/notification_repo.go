package repository

import (
	"context"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"gorm.io/gorm"
)

// ListScope narrows a poll query to a single target user. A nil TargetUserID
// means all users.
type ListScope struct {
	TargetUserID *string
}

// NotificationRepository reads candidate notifications produced by the
// platform application.
type NotificationRepository interface {
	// ListCreatedSince returns notifications created at or after the given
	// instant, oldest first, capped at limit.
	ListCreatedSince(ctx context.Context, since time.Time, scope ListScope, limit int) ([]domain.Notification, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) ListCreatedSince(
	ctx context.Context,
	since time.Time,
	scope ListScope,
	limit int,
) ([]domain.Notification, error) {
	query := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("created_at >= ?", since)

	if scope.TargetUserID != nil {
		query = query.Where("target_user_id = ?", *scope.TargetUserID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []NotificationModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, nil
}
