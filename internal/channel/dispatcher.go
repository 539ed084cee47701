package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultAttemptTimeout = 5 * time.Second

// Dispatcher tries an ordered list of transport channels. The first success
// short-circuits; each attempt is independently time-bounded so one stalled
// endpoint cannot stall the processing loop. Retry-over-time is the
// orchestrator's job; a Send call makes exactly one pass over the channels.
type Dispatcher struct {
	channels       []Channel
	attemptTimeout time.Duration
	logger         *zap.Logger
}

func NewDispatcher(channels []Channel, attemptTimeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		channels:       channels,
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}, nil
}

func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if d == nil || len(d.channels) == 0 {
		return nil, fmt.Errorf("dispatcher is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	failures := make([]string, 0, len(d.channels))

	for _, ch := range d.channels {
		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		result, err := ch.Send(attemptCtx, req)
		cancel()

		if err == nil {
			return result, nil
		}

		failures = append(failures, fmt.Sprintf("%s: %v", ch.Name(), err))

		d.logger.Warn("channel attempt failed",
			zap.String("channel", ch.Name()),
			zap.String("to", req.To),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			break
		}
	}

	// An exhausted channel list is a transient condition: endpoints come
	// back, so the tracker gets a bounded retry rather than a permanent
	// failure.
	return nil, &ChannelError{
		Message:   fmt.Sprintf("all channels failed: %s", strings.Join(failures, "; ")),
		Transient: true,
	}
}
