package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"github.com/cupidlink/mail-dispatcher/internal/repository"
	"go.uber.org/zap"
)

// templateNames maps each notification type to its canonical template name.
var templateNames = map[domain.NotificationType]string{
	domain.TypeLike:                 "like_notification",
	domain.TypeProfileView:          "profile_view_notification",
	domain.TypeMessage:              "new_message_notification",
	domain.TypeMatch:                "match_notification",
	domain.TypeReportReceived:       "report_received_notification",
	domain.TypeReportAccepted:       "report_accepted_notification",
	domain.TypeReportRejected:       "report_rejected_notification",
	domain.TypeVerificationApproved: "verification_approved_notification",
	domain.TypeVerificationRejected: "verification_rejected_notification",
	domain.TypeLoginSuccess:         "login_alert",
	domain.TypeLoginFailed:          "failed_login_alert",
	domain.TypeSystem:               "system_notification",
}

// TemplateNameFor returns the canonical template name for a notification
// type, if one is defined.
func TemplateNameFor(t domain.NotificationType) (string, bool) {
	name, ok := templateNames[t]
	return name, ok
}

// Resolver maps notification types to email templates and outbound server
// profiles. A miss on either is a configuration problem and therefore
// permanent: it is never retried.
type Resolver struct {
	templates       repository.TemplateRepository
	profiles        repository.ProfileRepository
	defaultLanguage string
	logger          *zap.Logger
}

func NewResolver(
	templates repository.TemplateRepository,
	profiles repository.ProfileRepository,
	defaultLanguage string,
	logger *zap.Logger,
) (*Resolver, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile repository is required")
	}
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{
		templates:       templates,
		profiles:        profiles,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}, nil
}

// ResolveTemplate finds the active template for a notification type in the
// requested language, falling back to the default language.
func (r *Resolver) ResolveTemplate(
	ctx context.Context,
	notificationType domain.NotificationType,
	language string,
) (*domain.EmailTemplate, error) {
	name, ok := templateNames[notificationType]
	if !ok {
		return nil, fmt.Errorf("%w: no template mapping for type %q", domain.ErrTemplateNotFound, notificationType)
	}

	if language == "" {
		language = r.defaultLanguage
	}

	tpl, err := r.templates.GetActiveByName(ctx, name, language)
	if errors.Is(err, domain.ErrNotFound) && language != r.defaultLanguage {
		tpl, err = r.templates.GetActiveByName(ctx, name, r.defaultLanguage)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no active template %q for language %q", domain.ErrTemplateNotFound, name, language)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %q: %w", name, err)
	}

	return tpl, nil
}

// ResolveProfile returns the outbound profile linked to the template for the
// given role, falling back to the single active default profile.
func (r *Resolver) ResolveProfile(
	ctx context.Context,
	tpl *domain.EmailTemplate,
	role domain.ProfileRole,
) (*domain.OutboundProfile, error) {
	if linkedID := tpl.ProfileID(role); linkedID != nil {
		profile, err := r.profiles.GetByID(ctx, *linkedID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to load linked profile %q: %w", *linkedID, err)
		}
		// Linked profile deleted or deactivated after the template was
		// configured; fall back to the default.
		r.logger.Warn("linked outbound profile not found, falling back to default",
			zap.String("templateName", tpl.Name),
			zap.String("profileId", *linkedID),
		)
	}

	profile, err := r.profiles.GetDefault(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no default outbound profile configured", domain.ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load default profile: %w", err)
	}

	return profile, nil
}
