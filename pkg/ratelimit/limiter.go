// Package ratelimit implements sliding-window admission control for the
// billing API quota. All callers share one Limiter; an admission is one
// permitted API call within the rolling window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Window is the rolling period the quota applies to.
const Window = 60 * time.Second

// Prometheus metrics for rate limiter operations.
var (
	rateLimitAcquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_rate_limit_acquires_total",
		Help: "Total number of admissions granted by the rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_rate_limit_wait_seconds",
		Help:    "Time callers spent waiting for a rate limit slot",
		Buckets: []float64{0.001, 0.1, 0.5, 1, 5, 15, 30, 60},
	})
)

// Limiter admits at most limit calls per rolling 60-second window.
// It is safe for use by many concurrent workers.
type Limiter struct {
	limit int

	mu         sync.Mutex
	admissions []time.Time

	logger zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Limiter. A limit <= 0 is a configuration error: such a
// limiter could never admit a call, so construction fails fast instead of
// letting Acquire block forever.
func New(limit int, logger zerolog.Logger) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	return &Limiter{
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Limit returns the configured admissions per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// Acquire blocks until a slot is available in the rolling window, then
// returns with the slot consumed. The only failure mode is context
// cancellation; the quota itself never produces an error, only waiting.
//
// The wait happens outside the lock so one caller's sleep never blocks
// another caller's admission check. Each wakeup re-evaluates the window
// from scratch.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := l.now()

	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.admissions) < l.limit {
			l.admissions = append(l.admissions, now)
			l.mu.Unlock()

			rateLimitAcquiresTotal.Inc()
			waited := now.Sub(start)
			rateLimitWaitSeconds.Observe(waited.Seconds())
			if waited > time.Second {
				l.logger.Debug().
					Dur("wait", waited).
					Msg("Rate limit slot acquired after wait")
			}
			return nil
		}

		sleep := Window - now.Sub(l.admissions[0])
		l.mu.Unlock()

		if sleep <= 0 {
			// Window edge: the oldest admission expires on the next check.
			continue
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit acquire: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// prune drops admissions that have left the rolling window.
// Caller must hold l.mu. O(limit) per call, acceptable for the small
// limits this quota uses.
func (l *Limiter) prune(now time.Time) {
	kept := l.admissions[:0]
	for _, t := range l.admissions {
		if now.Sub(t) < Window {
			kept = append(kept, t)
		}
	}
	l.admissions = kept
}

// InWindow returns the number of admissions currently inside the rolling
// window. Exposed for tests and observability.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.admissions)
}
