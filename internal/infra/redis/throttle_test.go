package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestSendThrottleAllow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	throttle, err := newSendThrottle(
		rdb,
		2,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newSendThrottle() error = %v", err)
	}

	allowed, err := throttle.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("first send should be allowed")
	}

	allowed, err = throttle.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("second send should be allowed")
	}

	allowed, err = throttle.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third send should be rejected by the throttle")
	}

	now = now.Add(time.Second)
	allowed, err = throttle.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new second window should allow the send")
	}
}

func TestSendThrottleBucketKey(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_050, 0)
	throttle, err := newSendThrottle(
		rdb,
		5,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newSendThrottle() error = %v", err)
	}

	if _, err := throttle.Allow(context.Background(), " Email "); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	key := "mail:throttle:email:1700000050"
	used, err := rdb.Get(context.Background(), key).Int()
	if err != nil {
		t.Fatalf("expected bucket %q, got error %v", key, err)
	}
	if used != 1 {
		t.Errorf("bucket %q = %d, want 1", key, used)
	}
}

func TestSendThrottleAllowPerChannel(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	throttle, err := newSendThrottle(
		rdb,
		1,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newSendThrottle() error = %v", err)
	}

	allowed, err := throttle.Allow(context.Background(), "relay")
	if err != nil {
		t.Fatalf("Allow(relay) error = %v", err)
	}
	if !allowed {
		t.Fatal("relay should be allowed on first request")
	}

	allowed, err = throttle.Allow(context.Background(), "function")
	if err != nil {
		t.Fatalf("Allow(function) error = %v", err)
	}
	if !allowed {
		t.Fatal("function should be allowed on first request")
	}

	allowed, err = throttle.Allow(context.Background(), "relay")
	if err != nil {
		t.Fatalf("Allow(relay) error = %v", err)
	}
	if allowed {
		t.Fatal("relay second request should be rejected")
	}
}

func TestSendThrottleWait(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_200, 0)
	sleepCalls := 0
	throttle, err := newSendThrottle(
		rdb,
		1,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			sleepCalls++
			if sleepCalls == 1 {
				now = now.Add(time.Second)
			}
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newSendThrottle() error = %v", err)
	}

	allowed, err := throttle.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	if err := throttle.Wait(context.Background(), "email"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if sleepCalls == 0 {
		t.Fatal("expected Wait() to sleep at least once")
	}
}

func TestSendThrottleWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_300, 0)
	throttle, err := newSendThrottle(
		rdb,
		1,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newSendThrottle() error = %v", err)
	}

	allowed, err := throttle.Allow(context.Background(), "email")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = throttle.Wait(ctx, "email")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}
