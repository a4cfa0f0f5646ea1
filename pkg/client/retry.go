package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booru_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig controls how failed page requests are retried.
type RetryConfig struct {
	// MaxAttempts includes the first request. 1 disables retries.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// forClass adjusts the backoff for an error class. Rate limits wait longer.
func (c RetryConfig) forClass(errorClass ErrorClass) RetryConfig {
	if errorClass == ErrorClassRateLimit {
		c.InitialBackoff *= 5
		c.MaxBackoff *= 2
	}
	return c
}

// backoff returns the jittered wait before the retry that follows attempt
// (1-based). A server-provided Retry-After raises the wait, capped at MaxBackoff.
func (c RetryConfig) backoff(attempt int, retryAfter time.Duration) time.Duration {
	wait := float64(c.InitialBackoff)
	for range attempt - 1 {
		wait *= c.BackoffMultiplier
	}
	wait = min(wait, float64(c.MaxBackoff))

	// ±20%
	d := time.Duration(wait * (0.8 + rand.Float64()*0.4))
	if retryAfter > d {
		d = min(retryAfter, c.MaxBackoff)
	}
	return d
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}

// attemptFunc performs one attempt and reports how it failed.
// A nil error means success; the class is ignored then.
type attemptFunc func() (ErrorClass, error)

// retryWithBackoff calls fn until it succeeds, fails with a class that is
// not retried, or MaxAttempts is reached. Waiting honours ctx.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn attemptFunc) error {
	attempts := max(config.MaxAttempts, 1)

	var (
		lastErr    error
		errorClass ErrorClass
	)
	for attempt := 1; ; attempt++ {
		errorClass, lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}
		if !shouldRetry(errorClass) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		var retryAfter time.Duration
		var httpErr *HTTPError
		if errors.As(lastErr, &httpErr) {
			retryAfter = httpErr.RetryAfter
		}
		wait := config.forClass(errorClass).backoff(attempt, retryAfter)

		retriesTotal.WithLabelValues(string(errorClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(wait.Seconds())
		log.Debug().
			Err(lastErr).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	log.Warn().
		Err(lastErr).
		Str("error_class", string(errorClass)).
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}
