// Package circuitbreaker guards the pipeline's outbound dependencies (model services, the
// vector index, web search, Redis and the session archive) so a failing backend is skipped
// quickly and reported as degraded instead of stalling every request.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of a breaker. The numeric values are exported as a gauge.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{"closed", "half-open", "open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("circuit breaker is half-open and at its trial limit")
)

// Config tunes one breaker
type Config struct {
	// FailureThreshold consecutive failures open a closed breaker
	FailureThreshold uint32
	// SuccessThreshold consecutive successes close a half-open breaker
	SuccessThreshold uint32
	// MaxRequests caps trial calls admitted while half-open
	MaxRequests uint32
	// Timeout is how long an open breaker rejects calls before trials start
	Timeout time.Duration
	// Interval clears the closed-state counts; zero keeps them until a state change
	Interval time.Duration

	OnStateChange func(name string, from, to State)
}

// DefaultConfig suits a remote model service
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		MaxRequests:      3,
		Timeout:          10 * time.Second,
		Interval:         time.Minute,
	}
}

// Counts are the outcomes observed in the current window
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker is safe for concurrent use
type CircuitBreaker struct {
	name   string
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	window   uint64    // bumped on every reset so late results from an old window are dropped
	deadline time.Time // end of the closed interval or of the open timeout; zero means none
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := &CircuitBreaker{name: name, config: config, logger: logger, now: time.Now}
	cb.resetWindow(cb.now())
	return cb
}

// Execute runs fn unless the breaker rejects it. A context that is already done is returned
// as-is and not counted. A panic in fn counts as a failure and is re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	window, err := cb.admit()
	if err != nil {
		return err
	}

	ok := false
	defer func() {
		cb.report(window, ok)
	}()
	err = fn()
	ok = err == nil
	return err
}

// Call is Execute for functions that return a value
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func() error {
		v, err := fn()
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the state as of now; an expired open timeout reads as half-open
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance(cb.now())
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance(cb.now())
	switch {
	case cb.state == StateOpen:
		return cb.window, ErrCircuitBreakerOpen
	case cb.state == StateHalfOpen && cb.counts.Requests >= cb.config.MaxRequests:
		return cb.window, ErrTooManyRequests
	}
	cb.counts.Requests++
	return cb.window, nil
}

func (cb *CircuitBreaker) report(window uint64, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.advance(now)
	if window != cb.window {
		return
	}

	c := &cb.counts
	if ok {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && c.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.transition(StateClosed, now)
		}
		return
	}

	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
	switch cb.state {
	case StateClosed:
		if c.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.transition(StateOpen, now)
		}
	case StateHalfOpen:
		cb.transition(StateOpen, now)
	}
}

// advance applies time-based changes: the closed interval rolling over and the open timeout
// expiring
func (cb *CircuitBreaker) advance(now time.Time) {
	if cb.deadline.IsZero() || now.Before(cb.deadline) {
		return
	}
	switch cb.state {
	case StateClosed:
		cb.resetWindow(now)
	case StateOpen:
		cb.transition(StateHalfOpen, now)
	}
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to State, now time.Time) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.resetWindow(now)

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func (cb *CircuitBreaker) resetWindow(now time.Time) {
	cb.window++
	cb.counts = Counts{}
	cb.deadline = time.Time{}
	switch cb.state {
	case StateClosed:
		if cb.config.Interval > 0 {
			cb.deadline = now.Add(cb.config.Interval)
		}
	case StateOpen:
		cb.deadline = now.Add(cb.config.Timeout)
	}
}
