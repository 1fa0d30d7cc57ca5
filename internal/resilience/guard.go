// Package resilience guards calls to remote dependencies with retry-with-backoff and a
// circuit breaker.
//
// A Guard is constructed per logical dependency (for example the relational store) and
// injected into the components that call it. Each Guard owns its own breaker, so tests
// can build isolated instances.
//
// Usage:
//
//	guard := resilience.NewGuard("store", resilience.DefaultConfig(), logger, nil)
//	item, err := resilience.Call(ctx, guard, func(ctx context.Context) (*models.Item, error) {
//	    return store.GetItem(ctx, itemID)
//	})
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
)

// Config controls retry and breaker behaviour.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry. It doubles on every
	// subsequent retry up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration

	// FailureThreshold is the number of consecutive failed calls that opens the breaker.
	FailureThreshold uint32

	// Cooldown is how long the breaker stays open before allowing a trial call.
	Cooldown time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		InitialDelay:     1000 * time.Millisecond,
		MaxDelay:         10000 * time.Millisecond,
		AttemptTimeout:   5 * time.Second,
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half_open"
	StateOpen     State = "open"
)

func stateOf(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Observer receives retry and breaker events, typically to record metrics.
type Observer interface {
	Retried(dependency string, category Category)
	StateChanged(dependency string, from, to State)
}

// Guard wraps calls to one remote dependency.
type Guard struct {
	name    string
	cfg     Config
	logger  *slog.Logger
	obs     Observer
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	// onRetry is a test hook observing each scheduled retry delay.
	onRetry func(delay time.Duration)

	mu       sync.Mutex
	openedAt time.Time
}

// NewGuard creates a guard for the named dependency. obs may be nil.
func NewGuard(name string, cfg Config, logger *slog.Logger, obs Observer) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{
		name:   name,
		cfg:    cfg,
		logger: logger,
		obs:    obs,
		now:    time.Now,
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: g.stateChanged,
		IsSuccessful: func(err error) bool {
			// Only dependency failures count against the breaker. A conflict or a
			// validation failure proves the dependency answered.
			return err == nil || !IsTransient(err)
		},
	})
	return g
}

// Name returns the dependency name.
func (g *Guard) Name() string {
	return g.name
}

// State returns the current breaker state.
func (g *Guard) State() State {
	return stateOf(g.breaker.State())
}

// Do runs op under the breaker, retrying transient failures with exponential backoff.
// A nil Guard runs op directly.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if g == nil {
		return op(ctx)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.retry(ctx, op)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domainerrors.CircuitOpen(g.name, g.retryAfter())
	}
	return err
}

// Call runs op through g and returns its result.
func Call[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (g *Guard) retry(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := func() error {
		attemptCtx := ctx
		if g.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		category, _ := Classify(err)
		g.logger.Debug("retrying dependency call",
			"dependency", g.name,
			"category", string(category),
			"delay", delay,
			"error", err)
		if g.obs != nil {
			g.obs.Retried(g.name, category)
		}
		if g.onRetry != nil {
			g.onRetry(delay)
		}
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(g.newBackOff(), ctx), notify)
}

func (g *Guard) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.InitialDelay
	b.MaxInterval = g.cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	if g.cfg.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(b, uint64(g.cfg.MaxRetries))
}

func (g *Guard) stateChanged(name string, from, to gobreaker.State) {
	if to == gobreaker.StateOpen {
		g.mu.Lock()
		g.openedAt = g.now()
		g.mu.Unlock()
		g.logger.Warn("circuit opened", "dependency", name, "cooldown", g.cfg.Cooldown)
	} else {
		g.logger.Info("circuit state changed", "dependency", name, "from", from.String(), "to", to.String())
	}
	if g.obs != nil {
		g.obs.StateChanged(name, stateOf(from), stateOf(to))
	}
}

// retryAfter is the remaining cooldown, or zero if a trial call is already in flight.
func (g *Guard) retryAfter() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	remaining := g.cfg.Cooldown - g.now().Sub(g.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
