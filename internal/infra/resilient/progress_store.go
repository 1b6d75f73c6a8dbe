// Package resilient wraps progress stores with retry and circuit breaking.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"training-progress-service/internal/app"
	"training-progress-service/internal/domain"
)

// Config tunes the retry and circuit breaker around a store.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// FailureThreshold trips the breaker after this many consecutive failures.
	FailureThreshold int
	OpenTimeout      time.Duration
	Logger           *slog.Logger
}

// DefaultConfig returns defaults suited to a networked store.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialDelay:     50 * time.Millisecond,
		MaxDelay:         time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

type loadResult struct {
	raw   []byte
	found bool
}

// ProgressStore decorates an app.ProgressStore. A missing key is a normal
// answer and never retried or counted against the breaker.
type ProgressStore struct {
	next    app.ProgressStore
	loads   retry.Retry[loadResult]
	saves   retry.Retry[struct{}]
	breaker circuitbreaker.CircuitBreaker[loadResult]
	logger  *slog.Logger
}

func NewProgressStore(next app.ProgressStore, cfg Config) *ProgressStore {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &ProgressStore{next: next, logger: cfg.Logger}
	s.loads = retry.New[loadResult](retryConfig(cfg))
	s.saves = retry.New[struct{}](retryConfig(cfg))
	s.breaker = circuitbreaker.New[loadResult](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    cfg.OpenTimeout,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= cfg.FailureThreshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			s.logger.Warn("progress store circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})
	return s
}

func retryConfig(cfg Config) retry.Config {
	return retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}
}

func (s *ProgressStore) Load(ctx context.Context, learnerID, key string) ([]byte, error) {
	res, err := s.breaker.Execute(ctx, func(ctx context.Context) (loadResult, error) {
		return s.loads.Do(ctx, func(ctx context.Context) (loadResult, error) {
			raw, err := s.next.Load(ctx, learnerID, key)
			if errors.Is(err, domain.ErrKeyNotFound) {
				return loadResult{}, nil
			}
			if err != nil {
				return loadResult{}, err
			}
			return loadResult{raw: raw, found: true}, nil
		})
	})
	if err != nil {
		s.logger.Warn("progress load failed", "learner", learnerID, "key", key, "err", err)
		return nil, err
	}
	if !res.found {
		return nil, domain.ErrKeyNotFound
	}
	return res.raw, nil
}

func (s *ProgressStore) Save(ctx context.Context, learnerID, key string, value []byte) error {
	_, err := s.breaker.Execute(ctx, func(ctx context.Context) (loadResult, error) {
		_, err := s.saves.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.next.Save(ctx, learnerID, key, value)
		})
		return loadResult{}, err
	})
	if err != nil {
		s.logger.Warn("progress save failed", "learner", learnerID, "key", key, "err", err)
	}
	return err
}
