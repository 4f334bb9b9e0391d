package ratelimit

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestNew_RejectsNonPositiveLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
	}{
		{name: "zero", limit: 0},
		{name: "negative", limit: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.limit, testLogger()); err == nil {
				t.Errorf("New(%d) expected error, got nil", tt.limit)
			}
		})
	}
}

func TestNew_ValidLimit(t *testing.T) {
	l, err := New(100, testLogger())
	if err != nil {
		t.Fatalf("New(100) error = %v", err)
	}
	if l.Limit() != 100 {
		t.Errorf("Limit() = %d, want 100", l.Limit())
	}
}

func TestAcquire_AdmitsUpToLimitImmediately(t *testing.T) {
	l, err := New(10, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
	}

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("10 admissions under limit took %v, want near-instant", elapsed)
	}
	if got := l.InWindow(); got != 10 {
		t.Errorf("InWindow() = %d, want 10", got)
	}
}

func TestAcquire_ConcurrentNeverExceedsWindow(t *testing.T) {
	const limit = 50
	l, err := New(limit, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
			// Window invariant must hold at every observation point.
			if got := l.InWindow(); got > limit {
				t.Errorf("InWindow() = %d, exceeds limit %d", got, limit)
			}
		}()
	}
	wg.Wait()

	if got := l.InWindow(); got != limit {
		t.Errorf("InWindow() = %d, want %d", got, limit)
	}
}

func TestAcquire_BlocksWhenWindowFull(t *testing.T) {
	l, err := New(2, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	blocked := make(chan error, 1)
	cancelCtx, cancel := context.WithCancel(ctx)
	go func() {
		blocked <- l.Acquire(cancelCtx)
	}()

	select {
	case err := <-blocked:
		t.Fatalf("Acquire() returned %v while window was full, want blocking", err)
	case <-time.After(100 * time.Millisecond):
		// Still blocked, as expected.
	}

	cancel()
	select {
	case err := <-blocked:
		if err == nil {
			t.Error("Acquire() after cancel returned nil, want context error")
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire() did not return after context cancellation")
	}
}

func TestAcquire_WindowSlidesWithTime(t *testing.T) {
	l, err := New(3, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Drive the clock manually so the window can expire without sleeping.
	current := time.Now()
	l.now = func() time.Time { return current }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	if got := l.InWindow(); got != 3 {
		t.Fatalf("InWindow() = %d, want 3", got)
	}

	// Advance past the window: all admissions expire, the next call
	// must be admitted without waiting.
	current = current.Add(Window + time.Second)
	if got := l.InWindow(); got != 0 {
		t.Errorf("InWindow() after window elapsed = %d, want 0", got)
	}

	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire() after expiry error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire() blocked although the window was empty")
	}

	if got := l.InWindow(); got != 1 {
		t.Errorf("InWindow() = %d, want 1", got)
	}
}

func TestPrune_KeepsOnlyWindowedAdmissions(t *testing.T) {
	l, err := New(10, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	now := time.Now()
	l.admissions = []time.Time{
		now.Add(-90 * time.Second), // expired
		now.Add(-61 * time.Second), // expired
		now.Add(-59 * time.Second), // kept
		now.Add(-time.Second),      // kept
	}

	l.prune(now)

	if len(l.admissions) != 2 {
		t.Errorf("prune kept %d admissions, want 2", len(l.admissions))
	}
}
