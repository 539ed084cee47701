package channel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeChannel struct {
	name   string
	sendFn func(ctx context.Context, req SendRequest) (*SendResult, error)
	calls  int
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	c.calls++
	if c.sendFn != nil {
		return c.sendFn(ctx, req)
	}
	return &SendResult{Method: c.name}, nil
}

func TestDispatcherFirstSuccessShortCircuits(t *testing.T) {
	t.Parallel()

	primary := &fakeChannel{
		name: "relay",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			return &SendResult{Method: "relay", MessageID: "m1"}, nil
		},
	}
	secondary := &fakeChannel{name: "function"}

	dispatcher, err := NewDispatcher([]Channel{primary, secondary}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	result, err := dispatcher.Send(context.Background(), testSendRequest())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.Method != "relay" {
		t.Fatalf("Method = %q, want relay", result.Method)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary calls = %d, want 0", secondary.calls)
	}
}

func TestDispatcherFallsBackToSecondary(t *testing.T) {
	t.Parallel()

	primary := &fakeChannel{
		name: "relay",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			return nil, &ChannelError{Channel: "relay", Message: "connection refused", Transient: true}
		},
	}
	secondary := &fakeChannel{
		name: "function",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			return &SendResult{Method: "function", MessageID: "m2"}, nil
		},
	}

	dispatcher, err := NewDispatcher([]Channel{primary, secondary}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	result, err := dispatcher.Send(context.Background(), testSendRequest())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.Method != "function" {
		t.Fatalf("Method = %q, want function", result.Method)
	}
	if primary.calls != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.calls)
	}
}

func TestDispatcherAggregatesFailures(t *testing.T) {
	t.Parallel()

	primary := &fakeChannel{
		name: "relay",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			return nil, &ChannelError{Channel: "relay", Message: "down", Transient: true}
		},
	}
	secondary := &fakeChannel{
		name: "function",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			return nil, &ChannelError{Channel: "function", StatusCode: 400, Message: "rejected", Transient: false}
		},
	}

	dispatcher, err := NewDispatcher([]Channel{primary, secondary}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	_, err = dispatcher.Send(context.Background(), testSendRequest())
	if err == nil {
		t.Fatal("expected aggregated error")
	}

	if !IsTransient(err) {
		t.Fatal("aggregated channel failure should be transient")
	}
	if !strings.Contains(err.Error(), "relay") || !strings.Contains(err.Error(), "function") {
		t.Fatalf("aggregated error should name both channels: %v", err)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", primary.calls, secondary.calls)
	}
}

func TestDispatcherAttemptTimeoutBoundsEachChannel(t *testing.T) {
	t.Parallel()

	slow := &fakeChannel{
		name: "relay",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	fast := &fakeChannel{
		name: "function",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			return &SendResult{Method: "function"}, nil
		},
	}

	dispatcher, err := NewDispatcher([]Channel{slow, fast}, 20*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	start := time.Now()
	result, err := dispatcher.Send(context.Background(), testSendRequest())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.Method != "function" {
		t.Fatalf("Method = %q, want function", result.Method)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("dispatch took %s, timeout did not bound the slow channel", elapsed)
	}
}

func TestDispatcherStopsWhenParentContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	primary := &fakeChannel{
		name: "relay",
		sendFn: func(ctx context.Context, req SendRequest) (*SendResult, error) {
			cancel()
			return nil, &ChannelError{Channel: "relay", Message: "down", Transient: true}
		},
	}
	secondary := &fakeChannel{name: "function"}

	dispatcher, err := NewDispatcher([]Channel{primary, secondary}, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	_, err = dispatcher.Send(ctx, testSendRequest())
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary calls = %d, want 0 after parent cancellation", secondary.calls)
	}
}

func TestNewDispatcherRequiresChannels(t *testing.T) {
	t.Parallel()

	if _, err := NewDispatcher(nil, time.Second, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty channel list")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	if IsTransient(nil) {
		t.Fatal("nil error is not transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded is transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatal("cancellation is not transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Fatal("plain errors are not transient")
	}
}
