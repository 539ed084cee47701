package repository

import (
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
)

// NotificationModel maps the notifications table owned by the platform
// application. The dispatcher performs read-only range queries against it.
type NotificationModel struct {
	ID           string                  `gorm:"type:uuid;primaryKey"`
	TargetUserID string                  `gorm:"type:uuid;not null;column:target_user_id"`
	SourceUserID *string                 `gorm:"type:uuid;column:source_user_id"`
	Type         domain.NotificationType `gorm:"type:varchar(30);not null"`
	Title        string                  `gorm:"type:varchar(255)"`
	Message      string                  `gorm:"type:text"`
	IsRead       bool                    `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// TrackingRecordModel is the persistence model for the delivery ledger.
// Owned exclusively by this process family.
type TrackingRecordModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	NotificationID string                `gorm:"type:uuid;not null;uniqueIndex:idx_tracking_notification_id"`
	Status         domain.DeliveryStatus `gorm:"type:varchar(10);not null"`
	RetryCount     int                   `gorm:"not null;default:0"`
	SentAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TrackingRecordModel) TableName() string {
	return "email_delivery_tracking"
}

// EmailTemplateModel maps the email_templates table owned by the admin
// management surface. Read-only here.
type EmailTemplateModel struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	Name             string  `gorm:"type:varchar(100);not null"`
	Language         string  `gorm:"type:varchar(8);not null"`
	Subject          string  `gorm:"type:varchar(255);not null"`
	HTML             string  `gorm:"type:text;column:html"`
	Text             string  `gorm:"type:text"`
	Active           bool    `gorm:"not null;default:true"`
	SendProfileID    *string `gorm:"type:uuid;column:send_profile_id"`
	ReceiveProfileID *string `gorm:"type:uuid;column:receive_profile_id"`
	CreatedAt        time.Time
}

func (EmailTemplateModel) TableName() string {
	return "email_templates"
}

// OutboundProfileModel maps the smtp_profiles table owned by the admin
// management surface. Read-only here.
type OutboundProfileModel struct {
	ID          string            `gorm:"type:uuid;primaryKey"`
	Name        string            `gorm:"type:varchar(100);not null"`
	Host        string            `gorm:"type:varchar(255);not null"`
	Port        int               `gorm:"not null"`
	Username    string            `gorm:"type:varchar(255)"`
	Password    string            `gorm:"type:varchar(255)"`
	FromAddress string            `gorm:"type:varchar(255);not null"`
	FromNames   map[string]string `gorm:"serializer:json;type:jsonb;column:from_names"`
	ReplyTo     string            `gorm:"type:varchar(255);column:reply_to"`
	Active      bool              `gorm:"not null;default:true"`
	Default     bool              `gorm:"not null;default:false;column:is_default"`
	CreatedAt   time.Time
}

func (OutboundProfileModel) TableName() string {
	return "smtp_profiles"
}

// UserModel maps the slice of the users table the dispatcher needs: the
// recipient email lookup.
type UserModel struct {
	ID    string `gorm:"type:uuid;primaryKey"`
	Email string `gorm:"type:varchar(255)"`
}

func (UserModel) TableName() string {
	return "users"
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:           m.ID,
		TargetUserID: m.TargetUserID,
		SourceUserID: m.SourceUserID,
		Type:         m.Type,
		Title:        m.Title,
		Message:      m.Message,
		IsRead:       m.IsRead,
		CreatedAt:    m.CreatedAt,
	}
}

func trackingModelToDomain(m *TrackingRecordModel) *domain.TrackingRecord {
	if m == nil {
		return nil
	}

	return &domain.TrackingRecord{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Status:         m.Status,
		RetryCount:     m.RetryCount,
		SentAt:         m.SentAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func templateModelToDomain(m *EmailTemplateModel) *domain.EmailTemplate {
	if m == nil {
		return nil
	}

	return &domain.EmailTemplate{
		ID:               m.ID,
		Name:             m.Name,
		Language:         m.Language,
		Subject:          m.Subject,
		HTML:             m.HTML,
		Text:             m.Text,
		Active:           m.Active,
		SendProfileID:    m.SendProfileID,
		ReceiveProfileID: m.ReceiveProfileID,
		CreatedAt:        m.CreatedAt,
	}
}

func profileModelToDomain(m *OutboundProfileModel) *domain.OutboundProfile {
	if m == nil {
		return nil
	}

	return &domain.OutboundProfile{
		ID:          m.ID,
		Name:        m.Name,
		Host:        m.Host,
		Port:        m.Port,
		Username:    m.Username,
		Password:    m.Password,
		FromAddress: m.FromAddress,
		FromNames:   m.FromNames,
		ReplyTo:     m.ReplyTo,
		Active:      m.Active,
		Default:     m.Default,
		CreatedAt:   m.CreatedAt,
	}
}
