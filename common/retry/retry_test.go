package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bdobrica/Shashin/common/retry"
)

var fast = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("rate limited")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil after eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	sentinel := errors.New("homeserver down")
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	forbidden := errors.New("forbidden")
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return retry.Permanent(forbidden)
	})
	if err != forbidden {
		t.Fatalf("expected unwrapped permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_ShouldRetryPredicate(t *testing.T) {
	fatal := errors.New("fatal")
	cfg := fast
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, fatal) }
	calls := 0
	err := retry.Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("got err=%v calls=%d, want fatal after 1 call", err, calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := retry.Do(ctx, fast, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls, got %d", calls)
	}
}
