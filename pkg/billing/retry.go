package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	billingRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	billingRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// retryPolicy holds the configuration for retry logic.
type retryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
}

// defaultRetryPolicy keeps retries short: the original pipeline never
// retried at all, so this is a bounded improvement, not a safety net for
// broken requests.
func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff and jitter.
// Client (4xx) errors return immediately; server and network errors are
// retried up to the policy's attempt budget.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, policy retryPolicy, fn func() (json.RawMessage, error)) (json.RawMessage, error) {
	var lastErr error
	backoff := policy.InitialBackoff

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		payload, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return payload, nil
		}

		lastErr = err
		class := errorClass(err)

		if !shouldRetry(class) {
			return nil, lastErr
		}

		if attempt >= policy.MaxAttempts {
			break
		}

		billingRetriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry wait: %w", ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * policy.Multiplier)
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	class := errorClass(lastErr)
	billingRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	logger.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", policy.MaxAttempts).
		Msg("Retry attempts exhausted")

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, policy.MaxAttempts, lastErr)
}
