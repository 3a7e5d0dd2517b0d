package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
)

// ErrCircuitOpen is returned without calling the vendor while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState of a breaker
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit
	FailureThreshold int
	// Timeout is how long the circuit stays open before one trial call
	Timeout time.Duration
}

// CircuitBreaker stops calling a vendor that keeps failing
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       int32 // atomic CircuitState
	failures    int64 // atomic consecutive failures
	lastFailure int64 // atomic unix nano
	now         func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt32(&cb.state))
}

// Execute runs fn unless the circuit is open. Context cancellation by the
// caller is not counted as a vendor failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	switch {
	case err == nil:
		cb.recordSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		cb.recordFailure()
	}
	return err
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	atomic.StoreInt32(&cb.state, int32(CircuitClosed))
	atomic.StoreInt64(&cb.failures, 0)
}

func (cb *CircuitBreaker) allowRequest() bool {
	switch CircuitState(atomic.LoadInt32(&cb.state)) {
	case CircuitClosed:
		return true
	case CircuitOpen:
		last := time.Unix(0, atomic.LoadInt64(&cb.lastFailure))
		if cb.now().Sub(last) < cb.config.Timeout {
			return false
		}
		// only one caller wins the trial slot
		return atomic.CompareAndSwapInt32(&cb.state, int32(CircuitOpen), int32(CircuitHalfOpen))
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	atomic.StoreInt64(&cb.failures, 0)
	atomic.StoreInt32(&cb.state, int32(CircuitClosed))
}

func (cb *CircuitBreaker) recordFailure() {
	atomic.StoreInt64(&cb.lastFailure, cb.now().UnixNano())
	n := atomic.AddInt64(&cb.failures, 1)

	if CircuitState(atomic.LoadInt32(&cb.state)) == CircuitHalfOpen || n >= int64(cb.config.FailureThreshold) {
		atomic.StoreInt32(&cb.state, int32(CircuitOpen))
	}
}

// guarded runs a provider through a circuit breaker
type guarded struct {
	Provider
	breaker *CircuitBreaker
}

// WithCircuitBreaker wraps p so repeated failures short-circuit further calls
func WithCircuitBreaker(p Provider, cb *CircuitBreaker) Provider {
	return &guarded{Provider: p, breaker: cb}
}

func (g *guarded) SearchSales(ctx context.Context, q SearchQuery) ([]records.SaleRecord, error) {
	var out []records.SaleRecord
	err := g.breaker.Execute(ctx, func() error {
		var err error
		out, err = g.Provider.SearchSales(ctx, q)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, newError(g.Name(), ErrCodeCircuitOpen, "circuit breaker is open", true)
	}
	return out, err
}
