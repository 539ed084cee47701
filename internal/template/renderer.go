package template

import (
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

// Defaults are the platform-wide variables every rendering starts from.
// Caller-supplied variables win on key collision.
type Defaults struct {
	PlatformName string
	SupportEmail string
	ContactEmail string
	BaseURL      string
}

// Renderer produces a RenderedEmail from a template, an outbound profile and
// a variable map. Pure apart from the injected clock.
type Renderer struct {
	defaults        Defaults
	defaultLanguage string
	now             func() time.Time
}

func NewRenderer(defaults Defaults, defaultLanguage string) *Renderer {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Renderer{
		defaults:        defaults,
		defaultLanguage: defaultLanguage,
		now:             time.Now,
	}
}

// Render substitutes variables into the template's subject, html and text
// bodies and resolves the sender identity from the profile for the given
// language. The profile is guaranteed non-nil by upstream resolution.
func (r *Renderer) Render(
	tpl *domain.EmailTemplate,
	profile *domain.OutboundProfile,
	language string,
	vars Variables,
) *domain.RenderedEmail {
	effective := Variables{
		"timestamp":    r.now().UTC().Format(timestampLayout),
		"platformName": r.defaults.PlatformName,
		"supportEmail": r.defaults.SupportEmail,
		"contactEmail": r.defaults.ContactEmail,
		"baseUrl":      r.defaults.BaseURL,
	}
	for key, value := range vars {
		effective[key] = value
	}

	rendered := &domain.RenderedEmail{
		Subject: Render(tpl.Subject, effective),
		HTML:    Render(tpl.HTML, effective),
		Text:    Render(tpl.Text, effective),
	}

	if profile != nil {
		rendered.FromAddress = profile.FromAddress
		rendered.FromName = profile.FromNameFor(language, r.defaultLanguage)
		rendered.ReplyTo = profile.ReplyTo
	}

	return rendered
}
