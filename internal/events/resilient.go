package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrRateLimited is returned when the publisher sheds an event
var ErrRateLimited = errors.New("event publish rate limit exceeded")

// ResilientPublisher wraps a Publisher with fortify resilience patterns so a
// broker outage never stalls the request path for long
type ResilientPublisher struct {
	next           Publisher
	circuitBreaker circuitbreaker.CircuitBreaker[struct{}]
	retrier        retry.Retry[struct{}]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

// ResilientConfig holds configuration for the resilient publisher
type ResilientConfig struct {
	EnableCircuitBreaker bool
	EnableRetry          bool
	EnableRateLimit      bool

	// MaxAttempts for retry (default: 3)
	MaxAttempts int

	// RetryDelay is the initial backoff (default: 200ms)
	RetryDelay time.Duration

	// RatePerSecond for rate limiting (default: 50)
	RatePerSecond int

	Logger *slog.Logger
}

// DefaultResilientConfig returns defaults suited to a local broker
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableRateLimit:      true,
		MaxAttempts:          3,
		RetryDelay:           200 * time.Millisecond,
		RatePerSecond:        50,
	}
}

// NewResilientPublisher wraps next with the patterns enabled in cfg
func NewResilientPublisher(next Publisher, cfg ResilientConfig) *ResilientPublisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rp := &ResilientPublisher{
		next:   next,
		logger: logger,
	}

	if cfg.EnableCircuitBreaker {
		rp.circuitBreaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				rp.logger.Warn("event publisher circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		attempts := cfg.MaxAttempts
		if attempts <= 0 {
			attempts = 3
		}
		delay := cfg.RetryDelay
		if delay <= 0 {
			delay = 200 * time.Millisecond
		}
		rp.retrier = retry.New[struct{}](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  delay,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 50
		}
		rp.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	return rp
}

// Publish validates e and hands it to the wrapped publisher
func (p *ResilientPublisher) Publish(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	if p.rateLimit != nil && !p.rateLimit.Allow(ctx, e.Type) {
		return fmt.Errorf("%w: %s", ErrRateLimited, e.Type)
	}

	operation := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, e)
	}

	var err error
	switch {
	case p.circuitBreaker != nil && p.retrier != nil:
		_, err = p.circuitBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return p.retrier.Do(ctx, operation)
		})
	case p.circuitBreaker != nil:
		_, err = p.circuitBreaker.Execute(ctx, operation)
	case p.retrier != nil:
		_, err = p.retrier.Do(ctx, operation)
	default:
		_, err = operation(ctx)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close releases resources held by the publisher
func (p *ResilientPublisher) Close() error {
	if p.rateLimit != nil {
		return p.rateLimit.Close()
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrInvalidEvent)
}

var _ Publisher = (*ResilientPublisher)(nil)
