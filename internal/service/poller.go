package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/observability"
	"github.com/cupidlink/mail-dispatcher/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultCheckInterval  = 60 * time.Second
	defaultLookbackWindow = 5 * time.Minute
	defaultBatchSize      = 50
	defaultMaxRetries     = 3
	defaultRetryDelay     = 5 * time.Minute
)

// PollerConfig is the runtime-tunable configuration of the polling loop.
type PollerConfig struct {
	CheckInterval  time.Duration
	LookbackWindow time.Duration
	BatchSize      int
	MaxRetries     int
	RetryDelay     time.Duration
	EnableTracking bool
	TargetUserID   *string
}

func (c *PollerConfig) applyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.LookbackWindow <= 0 {
		c.LookbackWindow = defaultLookbackWindow
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
}

// PollerConfigUpdate is a partial configuration change; nil fields keep
// their current value. Interval changes take effect when the next tick is
// scheduled.
type PollerConfigUpdate struct {
	CheckInterval  *time.Duration
	LookbackWindow *time.Duration
	BatchSize      *int
	MaxRetries     *int
	RetryDelay     *time.Duration
	EnableTracking *bool
	TargetUserID   *string
	LogLevel       *string
}

// PollerStats is a snapshot of the loop's counters since start or the last
// reset.
type PollerStats struct {
	IsRunning      bool      `json:"isRunning"`
	StartTime      time.Time `json:"startTime"`
	UptimeSeconds  float64   `json:"uptimeSeconds"`
	ProcessedCount int64     `json:"processedCount"`
	SentCount      int64     `json:"sentCount"`
	FailedCount    int64     `json:"failedCount"`
	SuccessRate    float64   `json:"successRate"`
}

// Poller periodically scans the notifications table for rows created inside
// the lookback window and runs each through the orchestrator, one at a
// time. A tick that finds the previous tick still running is skipped
// entirely rather than queued.
type Poller struct {
	notifications repository.NotificationRepository
	orchestrator  *Orchestrator
	logger        *zap.Logger
	metrics       *observability.Metrics
	setLogLevel   func(level string) error
	now           func() time.Time

	mu        sync.Mutex
	cfg       PollerConfig
	running   bool
	startTime time.Time
	processed int64
	sent      int64
	failed    int64

	tickBusy atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

func NewPoller(
	notifications repository.NotificationRepository,
	orchestrator *Orchestrator,
	cfg PollerConfig,
	logger *zap.Logger,
) (*Poller, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Poller{
		notifications: notifications,
		orchestrator:  orchestrator,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
		stop:          make(chan struct{}),
	}, nil
}

func (p *Poller) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// SetLogLevelFunc wires runtime log level changes issued through
// UpdateConfig.
func (p *Poller) SetLogLevelFunc(fn func(level string) error) {
	if p == nil {
		return
	}
	p.setLogLevel = fn
}

// Start runs the polling loop until the context is canceled or Stop is
// called. The first scan happens immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller is already running")
	}
	p.running = true
	p.startTime = p.now()
	interval := p.cfg.CheckInterval
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.Info("mail poller started",
		zap.Duration("checkInterval", interval),
		zap.Duration("lookbackWindow", p.GetConfig().LookbackWindow),
	)

	p.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var ticks sync.WaitGroup
	defer ticks.Wait()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("mail poller stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-p.stop:
			p.logger.Info("mail poller stopped")
			return nil
		case <-ticker.C:
			// The scan runs off the loop so the ticker keeps its cadence;
			// a scan that outlasts the interval makes the next tick skip.
			ticks.Add(1)
			go func() {
				defer ticks.Done()
				p.tick(ctx)
			}()
			if next := p.GetConfig().CheckInterval; next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Stop prevents further ticks. A tick already in flight finishes.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Poller) tick(ctx context.Context) {
	if !p.tickBusy.CompareAndSwap(false, true) {
		p.logger.Warn("previous scan still running, skipping tick")
		if p.metrics != nil {
			p.metrics.IncTickSkipped()
		}
		return
	}
	defer p.tickBusy.Store(false)

	start := p.now()
	cfg := p.GetConfig()

	since := start.UTC().Add(-cfg.LookbackWindow)
	scope := repository.ListScope{TargetUserID: cfg.TargetUserID}

	notifications, err := p.notifications.ListCreatedSince(ctx, since, scope, cfg.BatchSize)
	if err != nil {
		p.logger.Error("failed to list recent notifications", zap.Error(err))
		return
	}

	opts := ProcessOptions{
		MaxRetries:      cfg.MaxRetries,
		TrackingEnabled: cfg.EnableTracking,
	}

	var sent, failed int64
	for _, n := range notifications {
		if ctx.Err() != nil {
			break
		}

		outcome, err := p.orchestrator.Process(ctx, n, opts)
		switch {
		case err != nil:
			failed++
			p.logger.Error("failed to process notification",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
		case outcome == OutcomeSent:
			sent++
		case outcome == OutcomeFailed, outcome == OutcomeRetry:
			failed++
		}
	}

	p.mu.Lock()
	p.processed += int64(len(notifications))
	p.sent += sent
	p.failed += failed
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.IncTick()
		p.metrics.ObserveTickDuration(p.now().Sub(start))
	}

	if len(notifications) > 0 {
		p.logger.Info("scan completed",
			zap.Int("examined", len(notifications)),
			zap.Int64("sent", sent),
			zap.Int64("failed", failed),
			zap.Duration("elapsed", p.now().Sub(start)),
		)
	}
}

// GetConfig returns a copy of the current configuration.
func (p *Poller) GetConfig() PollerConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// UpdateConfig applies a partial configuration change and returns the
// resulting configuration.
func (p *Poller) UpdateConfig(update PollerConfigUpdate) (PollerConfig, error) {
	if update.CheckInterval != nil && *update.CheckInterval <= 0 {
		return PollerConfig{}, fmt.Errorf("check interval must be positive")
	}
	if update.LookbackWindow != nil && *update.LookbackWindow <= 0 {
		return PollerConfig{}, fmt.Errorf("lookback window must be positive")
	}
	if update.BatchSize != nil && *update.BatchSize <= 0 {
		return PollerConfig{}, fmt.Errorf("batch size must be positive")
	}
	if update.MaxRetries != nil && *update.MaxRetries < 0 {
		return PollerConfig{}, fmt.Errorf("max retries must not be negative")
	}
	if update.RetryDelay != nil && *update.RetryDelay <= 0 {
		return PollerConfig{}, fmt.Errorf("retry delay must be positive")
	}

	if update.LogLevel != nil {
		if p.setLogLevel == nil {
			return PollerConfig{}, fmt.Errorf("log level changes are not supported")
		}
		if err := p.setLogLevel(*update.LogLevel); err != nil {
			return PollerConfig{}, fmt.Errorf("failed to set log level: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if update.CheckInterval != nil {
		p.cfg.CheckInterval = *update.CheckInterval
	}
	if update.LookbackWindow != nil {
		p.cfg.LookbackWindow = *update.LookbackWindow
	}
	if update.BatchSize != nil {
		p.cfg.BatchSize = *update.BatchSize
	}
	if update.MaxRetries != nil {
		p.cfg.MaxRetries = *update.MaxRetries
	}
	if update.RetryDelay != nil {
		p.cfg.RetryDelay = *update.RetryDelay
	}
	if update.EnableTracking != nil {
		p.cfg.EnableTracking = *update.EnableTracking
	}
	if update.TargetUserID != nil {
		if *update.TargetUserID == "" {
			p.cfg.TargetUserID = nil
		} else {
			id := *update.TargetUserID
			p.cfg.TargetUserID = &id
		}
	}

	return p.cfg, nil
}

// GetStats returns a snapshot of the loop's counters.
func (p *Poller) GetStats() PollerStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := PollerStats{
		IsRunning:      p.running,
		StartTime:      p.startTime,
		ProcessedCount: p.processed,
		SentCount:      p.sent,
		FailedCount:    p.failed,
	}
	if p.running {
		stats.UptimeSeconds = p.now().Sub(p.startTime).Seconds()
	}
	if stats.ProcessedCount > 0 {
		stats.SuccessRate = float64(stats.SentCount) / float64(stats.ProcessedCount)
	}
	return stats
}

// ResetStats zeroes the counters without touching the running state.
func (p *Poller) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = 0
	p.sent = 0
	p.failed = 0
	if p.running {
		p.startTime = p.now()
	}
}
