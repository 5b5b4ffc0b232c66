package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets one trial request through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned for calls rejected by an open Breaker.
var ErrBreakerOpen = eris.New("resilience: circuit breaker is open")

// Breaker fails calls fast after repeated failures so callers fall back
// without waiting on a service that is down.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu            sync.Mutex
	state         BreakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// NewBreaker creates a Breaker that opens after threshold consecutive
// failures and lets a trial request through after cooldown.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Execute runs fn unless the breaker is open.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.setState(BreakerHalfOpen)
		b.trialInFlight = true
		return nil
	case BreakerHalfOpen:
		if b.trialInFlight {
			return ErrBreakerOpen
		}
		b.trialInFlight = true
		return nil
	default:
		return nil
	}
}

// record counts a result. Caller cancellation says nothing about the
// service and is ignored.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialInFlight = false

	if err != nil && eris.Is(err, context.Canceled) {
		return
	}
	if !isServiceFailure(err) {
		b.failures = 0
		if b.state != BreakerClosed {
			b.setState(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.setState(BreakerOpen)
		}
	}
}

func (b *Breaker) setState(to BreakerState) {
	zap.L().Info("circuit breaker state change",
		zap.String("breaker", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}

// isServiceFailure reports whether err says the service is unhealthy. Client
// errors such as 404 do not.
func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}
	if eris.Is(err, context.DeadlineExceeded) || IsTransient(err) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
