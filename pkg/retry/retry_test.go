package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, JitterFrac: 0}
}

func TestDoSucceedsWithinBudget(t *testing.T) {
	// 前 3 次超时，第 4 次成功：不应向上层暴露失败
	calls := 0
	err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 4 {
			return errors.New("timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on 4th attempt, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("calls got=%d want=4", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("timeout")
	err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error surfaced, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("calls got=%d want=4", calls)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return Permanent(errors.New("invalid state"))
	})
	if err == nil || !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error must not be retried, calls=%d", calls)
	}
}

func TestDoRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Do(ctx, "test", func(ctx context.Context) error {
			calls++
			return errors.New("down")
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestBackoffCapped(t *testing.T) {
	p := Policy{MaxAttempts: 8, BaseDelay: time.Second, MaxDelay: 8 * time.Second, JitterFrac: 0}
	if got := p.Backoff(0); got != time.Second {
		t.Fatalf("backoff(0) got=%v", got)
	}
	if got := p.Backoff(2); got != 4*time.Second {
		t.Fatalf("backoff(2) got=%v", got)
	}
	if got := p.Backoff(10); got != 8*time.Second {
		t.Fatalf("backoff must cap at MaxDelay, got=%v", got)
	}
}
