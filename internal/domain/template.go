package domain

import (
	"strings"
	"time"
)

// ProfileRole selects which linked outbound profile a template resolves to.
// Two-way contact templates declare distinct send and receive profiles.
type ProfileRole string

const (
	ProfileRoleSend    ProfileRole = "send"
	ProfileRoleReceive ProfileRole = "receive"
)

// EmailTemplate is one localized, named subject/html/text document. Rows are
// owned by the admin management surface; the dispatcher only reads active
// rows. Name is unique among active rows within a language.
type EmailTemplate struct {
	ID               string
	Name             string
	Language         string
	Subject          string
	HTML             string
	Text             string
	Active           bool
	SendProfileID    *string
	ReceiveProfileID *string
	CreatedAt        time.Time
}

// ProfileID returns the linked outbound profile for the given role, if any.
func (t *EmailTemplate) ProfileID(role ProfileRole) *string {
	if t == nil {
		return nil
	}
	if role == ProfileRoleReceive && t.ReceiveProfileID != nil {
		return t.ReceiveProfileID
	}
	return t.SendProfileID
}

// OutboundProfile is a mail-sending configuration. At most one active
// profile carries the default flag; that invariant is enforced by the
// management surface and assumed here.
type OutboundProfile struct {
	ID          string
	Name        string
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromNames   map[string]string
	ReplyTo     string
	Active      bool
	Default     bool
	CreatedAt   time.Time
}

// FromNameFor resolves the localized sender name, falling back to the
// requested fallback language and then to any configured name.
func (p *OutboundProfile) FromNameFor(language, fallback string) string {
	if p == nil {
		return ""
	}
	if name := strings.TrimSpace(p.FromNames[language]); name != "" {
		return name
	}
	if name := strings.TrimSpace(p.FromNames[fallback]); name != "" {
		return name
	}
	for _, name := range p.FromNames {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// RenderedEmail is the ephemeral output of template rendering. It is never
// persisted.
type RenderedEmail struct {
	Subject     string
	HTML        string
	Text        string
	FromAddress string
	FromName    string
	ReplyTo     string
}
