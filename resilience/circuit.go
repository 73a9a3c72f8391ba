package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means requests flow normally.
	StateClosed State = iota
	// StateOpen means requests are rejected without reaching the upstream.
	StateOpen
	// StateHalfOpen means a limited number of probes are let through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of concurrent probes allowed.
	// Default: 1
	HalfOpenMaxRequests int

	// IsFailure determines if an error counts against the upstream.
	// Default: IsRetryable, so 4xx answers do not open the circuit.
	IsFailure func(err error) bool

	// OnStateChange is called after a transition, outside the lock.
	OnStateChange func(from, to State)

	// Now is the time source. Default: time.Now
	Now func() time.Time
}

// CircuitBreaker stops calling an upstream after repeated failures.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probes      int
	transitions []transition
}

type transition struct{ from, to State }

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = IsRetryable
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{config: config}
}

// Execute runs op unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := op(ctx)
	cb.record(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	state := cb.refreshLocked()
	pending := cb.drainLocked()
	cb.mu.Unlock()

	cb.notify(pending)
	return state
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.setStateLocked(StateClosed)
	cb.failures = 0
	pending := cb.drainLocked()
	cb.mu.Unlock()

	cb.notify(pending)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer func() {
		pending := cb.drainLocked()
		cb.mu.Unlock()
		cb.notify(pending)
	}()

	switch cb.refreshLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	failed := err != nil && cb.config.IsFailure(err)

	cb.mu.Lock()
	switch cb.state {
	case StateClosed:
		if failed {
			cb.failures++
			if cb.failures >= cb.config.MaxFailures {
				cb.openLocked()
			}
		} else {
			cb.failures = 0
		}
	case StateHalfOpen:
		if failed {
			cb.openLocked()
		} else {
			cb.setStateLocked(StateClosed)
			cb.failures = 0
		}
	}
	pending := cb.drainLocked()
	cb.mu.Unlock()

	cb.notify(pending)
}

func (cb *CircuitBreaker) openLocked() {
	cb.openedAt = cb.config.Now()
	cb.setStateLocked(StateOpen)
}

// refreshLocked moves an open circuit to half-open once ResetTimeout elapsed.
func (cb *CircuitBreaker) refreshLocked() State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(to State) {
	if cb.state == to {
		return
	}
	cb.transitions = append(cb.transitions, transition{cb.state, to})
	cb.state = to
	cb.probes = 0
}

func (cb *CircuitBreaker) drainLocked() []transition {
	pending := cb.transitions
	cb.transitions = nil
	return pending
}

func (cb *CircuitBreaker) notify(pending []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, t := range pending {
		cb.config.OnStateChange(t.from, t.to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:    cb.state,
		Failures: cb.failures,
		OpenedAt: cb.openedAt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State    State
	Failures int
	OpenedAt time.Time
}
