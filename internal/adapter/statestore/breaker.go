package statestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"pinengine/internal/domain"
)

// Default breaker settings.
const (
	defaultMaxFailures uint32        = 5
	defaultOpenTimeout time.Duration = 30 * time.Second
)

// BreakerConfig configures Breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a half-open probe.
	OpenTimeout time.Duration
}

// Breaker wraps a StateStore with circuit breaker protection. While the
// circuit is open calls fail fast without touching the underlying store.
type Breaker struct {
	inner   domain.StateStore
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewBreaker wraps inner. Zero config fields fall back to defaults.
func NewBreaker(inner domain.StateStore, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "statestore",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &Breaker{inner: inner, breaker: cb, logger: logger}
}

func (b *Breaker) exec(op string, fn func() error) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w",
			domain.NewSubSystemError("store", op, domain.ErrUnavailable, "circuit open"),
			domain.ErrStoreFailure)
	}
	return err
}

func (b *Breaker) Get(ctx context.Context, pin int) (string, bool, error) {
	var (
		mode string
		ok   bool
	)
	err := b.exec("Breaker.Get", func() error {
		var err error
		mode, ok, err = b.inner.Get(ctx, pin)
		return err
	})
	return mode, ok, err
}

func (b *Breaker) Put(ctx context.Context, pin int, mode string) error {
	return b.exec("Breaker.Put", func() error { return b.inner.Put(ctx, pin, mode) })
}

func (b *Breaker) Delete(ctx context.Context, pin int) error {
	return b.exec("Breaker.Delete", func() error { return b.inner.Delete(ctx, pin) })
}

// ForEach counts as one breaker call. Errors returned by fn do not trip the
// circuit because they are not store faults.
func (b *Breaker) ForEach(ctx context.Context, fn func(pin int, mode string) error) error {
	var fnErr error
	err := b.exec("Breaker.ForEach", func() error {
		err := b.inner.ForEach(ctx, func(pin int, mode string) error {
			if err := fn(pin, mode); err != nil {
				fnErr = err
				return err
			}
			return nil
		})
		if fnErr != nil {
			return nil
		}
		return err
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

func (b *Breaker) Close() error { return b.inner.Close() }

// State returns the current circuit state for monitoring.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

var _ domain.StateStore = (*Breaker)(nil)
