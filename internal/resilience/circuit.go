package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is
// open. It is not transient: callers degrade the current record instead of
// retrying.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker trips after a run of consecutive transient failures against one
// external service, so a dead service degrades records quickly instead of
// exhausting the full backoff ladder on every record.
type Breaker struct {
	service          string
	failureThreshold int
	resetTimeout     time.Duration

	mu                  sync.Mutex
	open                bool
	consecutiveFailures int
	openedAt            time.Time

	// now allows test injection of time.
	now func() time.Time
}

// NewBreaker creates a breaker for the named service.
func NewBreaker(service string, failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		service:          service,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a request may proceed. After the reset timeout the
// breaker lets one probe through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.resetTimeout {
		// Half-open: allow a probe; Record decides what happens next.
		return nil
	}
	return ErrCircuitOpen
}

// Record feeds a call outcome into the breaker. Only transient errors count
// toward the failure threshold; contract errors say nothing about the
// service's health.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !IsTransient(err) {
		if b.open {
			zap.L().Info("circuit closed", zap.String("service", b.service))
		}
		b.open = false
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold && !b.open {
		b.open = true
		b.openedAt = b.now()
		zap.L().Warn("circuit opened",
			zap.String("service", b.service),
			zap.Int("consecutive_failures", b.consecutiveFailures),
		)
	} else if b.open {
		// Failed probe: restart the reset window.
		b.openedAt = b.now()
	}
}

// ExecuteVal runs fn through the breaker, recording the outcome.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.Record(err)
	return val, err
}
