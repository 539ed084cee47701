package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/channel"
	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"github.com/cupidlink/mail-dispatcher/internal/observability"
	"github.com/cupidlink/mail-dispatcher/internal/ratelimit"
	"github.com/cupidlink/mail-dispatcher/internal/repository"
	"github.com/cupidlink/mail-dispatcher/internal/template"
	"go.uber.org/zap"
)

// Outcome is the per-notification result the poller aggregates into stats.
type Outcome string

const (
	// OutcomeSent: delivery succeeded, ledger finalized as sent.
	OutcomeSent Outcome = "sent"
	// OutcomeFailed: permanent failure (missing configuration or exhausted
	// retries); no further attempt on later ticks.
	OutcomeFailed Outcome = "failed"
	// OutcomeRetry: transient failure; the ledger re-arms the notification
	// for a later tick.
	OutcomeRetry Outcome = "retry"
	// OutcomeSkipped: nothing to do (already sent, exhausted earlier, or no
	// recipient address on file).
	OutcomeSkipped Outcome = "skipped"
)

// Sender is the outbound side of the pipeline; satisfied by
// channel.Dispatcher.
type Sender interface {
	Send(ctx context.Context, req channel.SendRequest) (*channel.SendResult, error)
}

// Enricher contributes opaque extra template variables (ip, location,
// device, browser, security level). How they are computed is not this
// package's concern.
type Enricher interface {
	Variables(ctx context.Context, n domain.Notification) map[string]any
}

// ProcessOptions is the per-tick configuration snapshot the poller hands to
// each Process call.
type ProcessOptions struct {
	MaxRetries      int
	TrackingEnabled bool
}

// Orchestrator runs the full pipeline for one notification: dedup check,
// recipient resolution, template and profile resolution, rendering,
// dispatch, ledger update. Every failure is absorbed here; nothing escapes
// to the polling loop except an error value it logs and counts.
type Orchestrator struct {
	tracker    *Tracker
	directory  repository.UserDirectory
	resolver   *Resolver
	renderer   *template.Renderer
	dispatcher Sender
	enricher   Enricher
	limiter    ratelimit.RateLimiter
	language   string
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewOrchestrator(
	tracker *Tracker,
	directory repository.UserDirectory,
	resolver *Resolver,
	renderer *template.Renderer,
	dispatcher Sender,
	language string,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if directory == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if language == "" {
		language = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		tracker:    tracker,
		directory:  directory,
		resolver:   resolver,
		renderer:   renderer,
		dispatcher: dispatcher,
		language:   language,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetEnricher attaches an optional variable enricher.
func (o *Orchestrator) SetEnricher(enricher Enricher) {
	if o == nil {
		return
	}
	o.enricher = enricher
}

// SetRateLimiter attaches an optional outbound rate limiter.
func (o *Orchestrator) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if o == nil {
		return
	}
	o.limiter = limiter
}

func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

// Process runs the pipeline for one notification. A returned error is a
// processing fault the caller logs and counts as failed; the returned
// outcome is only meaningful when the error is nil.
func (o *Orchestrator) Process(ctx context.Context, n domain.Notification, opts ProcessOptions) (Outcome, error) {
	if err := n.Validate(); err != nil {
		return OutcomeFailed, err
	}

	var previousRetries int
	if opts.TrackingEnabled {
		if record, ok := o.tracker.Get(ctx, n.ID); ok {
			if record.Status == domain.StatusSent {
				o.skip(n, "already_sent")
				return OutcomeSkipped, nil
			}
			if record.Status == domain.StatusFailed {
				o.skip(n, "failed_terminal")
				return OutcomeSkipped, nil
			}
			previousRetries = record.RetryCount
		}
	}

	recipient, err := o.directory.GetEmail(ctx, n.TargetUserID)
	if errors.Is(err, domain.ErrNotFound) {
		// Not an error: user has no address on file. No ledger write, no
		// network call.
		o.skip(n, "no_recipient")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to resolve recipient: %w", err)
	}

	if opts.TrackingEnabled {
		o.tracker.MarkPending(ctx, n.ID)
	}

	tpl, err := o.resolver.ResolveTemplate(ctx, n.Type, o.language)
	if errors.Is(err, domain.ErrTemplateNotFound) {
		return o.failPermanently(ctx, n, opts, err), nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	profile, err := o.resolver.ResolveProfile(ctx, tpl, domain.ProfileRoleSend)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return o.failPermanently(ctx, n, opts, err), nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	rendered := o.renderer.Render(tpl, profile, o.language, o.buildVariables(ctx, n))

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx, "email"); err != nil {
			// A broken limiter must not stall the mail loop.
			o.logger.Warn("rate limiter unavailable, sending unthrottled",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
		}
	}

	sendStart := o.now()
	result, sendErr := o.dispatcher.Send(ctx, channel.NewSendRequest(rendered, recipient, profile))

	// Senders are not required to return a result on success.
	method, messageID := "none", ""
	if result != nil {
		method, messageID = result.Method, result.MessageID
	}
	if o.metrics != nil {
		o.metrics.ObserveSendDuration(method, o.now().Sub(sendStart))
	}

	if sendErr == nil {
		if opts.TrackingEnabled {
			o.tracker.MarkSent(ctx, n.ID, o.now().UTC())
		}
		if o.metrics != nil {
			o.metrics.IncEmailSent(method)
		}
		o.logger.Info("notification email sent",
			zap.String("notificationId", n.ID),
			zap.String("type", n.Type.String()),
			zap.String("method", method),
			zap.String("messageId", messageID),
		)
		return OutcomeSent, nil
	}

	if previousRetries < opts.MaxRetries {
		if opts.TrackingEnabled {
			o.tracker.MarkRetry(ctx, n.ID)
		}
		if o.metrics != nil {
			o.metrics.IncRetryScheduled()
		}
		o.logger.Warn("dispatch failed, retry scheduled",
			zap.String("notificationId", n.ID),
			zap.Int("retryCount", previousRetries+1),
			zap.Int("maxRetries", opts.MaxRetries),
			zap.Error(sendErr),
		)
		return OutcomeRetry, nil
	}

	if opts.TrackingEnabled {
		o.tracker.MarkFailed(ctx, n.ID)
	}
	if o.metrics != nil {
		o.metrics.IncEmailFailed("retry_exhausted")
	}
	o.logger.Error("dispatch failed, retries exhausted",
		zap.String("notificationId", n.ID),
		zap.Int("retryCount", previousRetries),
		zap.Error(sendErr),
	)
	return OutcomeFailed, nil
}

func (o *Orchestrator) failPermanently(ctx context.Context, n domain.Notification, opts ProcessOptions, cause error) Outcome {
	if opts.TrackingEnabled {
		o.tracker.MarkFailed(ctx, n.ID)
	}
	if o.metrics != nil {
		o.metrics.IncEmailFailed("missing_configuration")
	}
	o.logger.Error("notification permanently failed",
		zap.String("notificationId", n.ID),
		zap.String("type", n.Type.String()),
		zap.Error(cause),
	)
	return OutcomeFailed
}

func (o *Orchestrator) skip(n domain.Notification, reason string) {
	if o.metrics != nil {
		o.metrics.IncEmailSkipped(reason)
	}
	o.logger.Debug("notification skipped",
		zap.String("notificationId", n.ID),
		zap.String("reason", reason),
	)
}

func (o *Orchestrator) buildVariables(ctx context.Context, n domain.Notification) template.Variables {
	vars := template.Variables{
		"notificationId":   n.ID,
		"notificationType": n.Type.String(),
		"title":            n.Title,
		"message":          n.Message,
		"targetUserId":     n.TargetUserID,
	}
	if n.SourceUserID != nil {
		vars["sourceUserId"] = *n.SourceUserID
	}

	if o.enricher != nil {
		for key, value := range o.enricher.Variables(ctx, n) {
			vars[key] = value
		}
	}

	return vars
}
