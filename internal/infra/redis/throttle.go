package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	throttleKeyPrefix = "mail:throttle"

	defaultSendsPerSec int64 = 100
	bucketTTLSeconds         = 2

	retryStep = 10 * time.Millisecond
	retryCap  = 50 * time.Millisecond
)

// countSend increments the channel's per-second bucket and reports whether
// the send still fits under the cap. Buckets expire one second after their
// window closes.
var countSend = goredis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if used > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*SendThrottle)(nil)

// SendThrottle caps outbound mail per second across all dispatcher
// instances. Each delivery channel gets its own per-second bucket in
// Redis, keyed mail:throttle:<channel>:<unixSecond>.
type SendThrottle struct {
	client      *goredis.Client
	sendsPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	script      *goredis.Script
}

func NewSendThrottle(client *goredis.Client, sendsPerSec int) (*SendThrottle, error) {
	return newSendThrottle(
		client,
		int64(sendsPerSec),
		time.Now,
		sleepWithContext,
	)
}

func newSendThrottle(
	client *goredis.Client,
	sendsPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*SendThrottle, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if sendsPerSec <= 0 {
		sendsPerSec = defaultSendsPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SendThrottle{
		client:      client,
		sendsPerSec: sendsPerSec,
		now:         nowFn,
		sleep:       sleepFn,
		script:      countSend,
	}, nil
}

// Allow reserves one send in the current second's bucket for the channel.
func (s *SendThrottle) Allow(ctx context.Context, channel string) (bool, error) {
	if s == nil || s.client == nil || s.script == nil {
		return false, fmt.Errorf("send throttle is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return false, fmt.Errorf("channel is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	bucket := fmt.Sprintf("%s:%s:%d", throttleKeyPrefix, normalized, s.now().UTC().Unix())
	result, err := s.script.Run(ctx, s.client, []string{bucket}, s.sendsPerSec, bucketTTLSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to count send against throttle: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until the channel has send budget or the context ends.
func (s *SendThrottle) Wait(ctx context.Context, channel string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	pause := retryStep
	for {
		allowed, err := s.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := s.sleep(ctx, pause); err != nil {
			return err
		}

		pause += retryStep
		if pause > retryCap {
			pause = retryCap
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
