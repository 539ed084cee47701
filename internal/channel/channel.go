package channel

import (
	"context"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
)

// SendRequest is the wire contract every transport channel receives.
type SendRequest struct {
	To            string        `json:"to"`
	Subject       string        `json:"subject"`
	HTML          string        `json:"html"`
	Text          string        `json:"text"`
	From          string        `json:"from"`
	FromName      string        `json:"fromName"`
	ReplyTo       string        `json:"replyTo,omitempty"`
	ProfileConfig ProfileConfig `json:"profileConfig"`
}

// ProfileConfig carries the outbound server settings a channel needs to
// speak SMTP on our behalf.
type ProfileConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// SendResult reports a successful delivery and which channel carried it.
type SendResult struct {
	Method    string
	MessageID string
}

// Channel is a single outbound email transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// NewSendRequest assembles the wire payload from a rendered email, the
// recipient and the resolved outbound profile.
func NewSendRequest(email *domain.RenderedEmail, recipient string, profile *domain.OutboundProfile) SendRequest {
	req := SendRequest{
		To: recipient,
	}

	if email != nil {
		req.Subject = email.Subject
		req.HTML = email.HTML
		req.Text = email.Text
		req.From = email.FromAddress
		req.FromName = email.FromName
		req.ReplyTo = email.ReplyTo
	}

	if profile != nil {
		req.ProfileConfig = ProfileConfig{
			Host:     profile.Host,
			Port:     profile.Port,
			Username: profile.Username,
			Password: profile.Password,
		}
	}

	return req
}
