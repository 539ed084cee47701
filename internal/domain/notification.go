package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType classifies platform events that may produce an email.
type NotificationType string

const (
	TypeLike                 NotificationType = "like"
	TypeProfileView          NotificationType = "profile_view"
	TypeMessage              NotificationType = "message"
	TypeMatch                NotificationType = "match"
	TypeReportReceived       NotificationType = "report_received"
	TypeReportAccepted       NotificationType = "report_accepted"
	TypeReportRejected       NotificationType = "report_rejected"
	TypeVerificationApproved NotificationType = "verification_approved"
	TypeVerificationRejected NotificationType = "verification_rejected"
	TypeLoginSuccess         NotificationType = "login_success"
	TypeLoginFailed          NotificationType = "login_failed"
	TypeSystem               NotificationType = "system"
)

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeLike, TypeProfileView, TypeMessage, TypeMatch,
		TypeReportReceived, TypeReportAccepted, TypeReportRejected,
		TypeVerificationApproved, TypeVerificationRejected,
		TypeLoginSuccess, TypeLoginFailed, TypeSystem:
		return true
	}
	return false
}

func ParseNotificationTypeFromString(s string) (NotificationType, error) {
	t := NotificationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return t, nil
}

// Notification is an event row produced by the platform application.
// The dispatcher only reads these; it never creates or mutates them.
type Notification struct {
	ID           string
	TargetUserID string
	SourceUserID *string
	Type         NotificationType
	Title        string
	Message      string
	IsRead       bool
	CreatedAt    time.Time
}

// Validate checks structural integrity only. The type is deliberately not
// checked: rows are read from a table other services write to, and a type
// this service does not know how to route is a delivery decision, not a
// malformed row.
func (n *Notification) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", ErrValidation)
	}
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("%w: notification id is required", ErrValidation)
	}
	if strings.TrimSpace(n.TargetUserID) == "" {
		return fmt.Errorf("%w: target user id is required", ErrValidation)
	}
	return nil
}
