package repository

import (
	"context"
	"errors"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"gorm.io/gorm"
)

// TemplateRepository reads active email templates by name and language.
type TemplateRepository interface {
	// GetActiveByName returns the most recently created active row for the
	// given name and language.
	GetActiveByName(ctx context.Context, name, language string) (*domain.EmailTemplate, error)
}

// ProfileRepository reads active outbound server profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.OutboundProfile, error)
	// GetDefault returns the single active profile flagged as default.
	GetDefault(ctx context.Context) (*domain.OutboundProfile, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) GetActiveByName(ctx context.Context, name, language string) (*domain.EmailTemplate, error) {
	var model EmailTemplateModel
	err := r.db.WithContext(ctx).
		Where("name = ? AND language = ? AND active = ?", name, language, true).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

type GormProfileRepo struct {
	db *gorm.DB
}

func NewGormProfileRepo(db *gorm.DB) *GormProfileRepo {
	return &GormProfileRepo{db: db}
}

func (r *GormProfileRepo) GetByID(ctx context.Context, id string) (*domain.OutboundProfile, error) {
	var model OutboundProfileModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return profileModelToDomain(&model), nil
}

func (r *GormProfileRepo) GetDefault(ctx context.Context) (*domain.OutboundProfile, error) {
	var model OutboundProfileModel
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND active = ?", true, true).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return profileModelToDomain(&model), nil
}
