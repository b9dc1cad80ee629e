package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Shashin/internal/shashin/ratelimit"
)

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	const limit = 5
	rl := ratelimit.New(limit, time.Minute)

	for i := 0; i < limit; i++ {
		if !rl.Allow("@alice:example.com") {
			t.Fatalf("Allow returned false on call %d/%d", i+1, limit)
		}
	}
	if rl.Allow("@alice:example.com") {
		t.Error("Allow returned true after the limit was exhausted")
	}
}

func TestLimiter_BatchAdmittedAsWhole(t *testing.T) {
	rl := ratelimit.New(20, time.Minute)

	if !rl.AllowN("@bob:example.com", 15) {
		t.Fatal("first batch of 15 should pass")
	}
	if rl.AllowN("@bob:example.com", 6) {
		t.Error("batch of 6 exceeds the remaining 5 and must be refused")
	}
	if got := rl.Remaining("@bob:example.com"); got != 5 {
		t.Errorf("Remaining = %d, want 5 (refused batch must not be recorded)", got)
	}
	if !rl.AllowN("@bob:example.com", 5) {
		t.Error("batch of 5 should fit exactly")
	}
}

func TestLimiter_IndependentPerSender(t *testing.T) {
	rl := ratelimit.New(2, time.Minute)

	rl.Allow("@alice:example.com")
	rl.Allow("@alice:example.com")
	if rl.Allow("@alice:example.com") {
		t.Error("alice should be rate-limited")
	}
	if !rl.Allow("@bob:example.com") {
		t.Error("bob should not be rate-limited")
	}
}

func TestLimiter_WindowExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := ratelimit.New(1, time.Minute)
	rl.SetClock(func() time.Time { return now })

	if !rl.Allow("@carol:example.com") {
		t.Fatal("first call should be allowed")
	}
	if rl.Allow("@carol:example.com") {
		t.Fatal("second call inside the window should be refused")
	}
	now = now.Add(61 * time.Second)
	if !rl.Allow("@carol:example.com") {
		t.Error("call after the window should be allowed")
	}
}

func TestLimiter_Defaults(t *testing.T) {
	rl := ratelimit.New(0, 0)
	if rl.Limit() != ratelimit.DefaultLimit {
		t.Errorf("Limit = %d, want %d", rl.Limit(), ratelimit.DefaultLimit)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	const limit = 50
	rl := ratelimit.New(limit, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("@dave:example.com") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != limit {
		t.Errorf("allowed = %d, want %d", allowed, limit)
	}
}
