package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"gorm.io/gorm"
)

// UserDirectory resolves a recipient email address for a platform user.
// An absent or empty address maps to domain.ErrNotFound; the pipeline
// treats that as a silent skip, not a failure.
type UserDirectory interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

func (r *GormUserDirectory) GetEmail(ctx context.Context, userID string) (string, error) {
	var model UserModel
	err := r.db.WithContext(ctx).
		Select("id", "email").
		First(&model, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	email := strings.TrimSpace(model.Email)
	if email == "" {
		return "", domain.ErrNotFound
	}
	return email, nil
}
