// Package circuit stops driving the agent after a run of failed ticks and
// lets one trial tick through once a cooldown has passed.
package circuit

import (
	"sync"
	"time"

	"cloneexec/internal/logger"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

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

// Snapshot is what the admin surface reports about a breaker.
type Snapshot struct {
	State      State
	Failures   int
	LastReason string
	// RetryAt is when an open breaker admits its trial tick; zero otherwise.
	RetryAt time.Time
}

// CircuitBreaker counts consecutive failed ticks. threshold of them open it;
// after cooldown since the last failure one tick is admitted half-open and
// its result closes or reopens the breaker.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	nowFn     func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	lastReason  string
}

func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		nowFn:     time.Now,
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := Snapshot{State: cb.state, Failures: cb.failures, LastReason: cb.lastReason}
	if cb.state == StateOpen {
		s.RetryAt = cb.lastFailure.Add(cb.cooldown)
	}
	return s
}

// Allow reports whether the next tick may run.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return true
	}
	if cb.nowFn().Sub(cb.lastFailure) <= cb.cooldown {
		return false
	}
	cb.state = StateHalfOpen
	logger.Infof("Breaker %s: cooldown over, admitting a trial tick after %d failed ticks (last: %s)",
		cb.name, cb.failures, cb.lastReason)
	return true
}

// RecordSuccess closes the breaker and clears the failure run.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen {
		logger.Infof("Breaker %s: trial tick succeeded, resuming normal ticks", cb.name)
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.lastReason = ""
}

// RecordFailure counts a failed tick. reason is the tick outcome and error
// text, kept for logs and the admin status.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = cb.nowFn()
	cb.lastReason = reason

	switch {
	case cb.state == StateHalfOpen:
		cb.state = StateOpen
		logger.Warnf("Breaker %s: trial tick failed (%s), pausing ticks for %s", cb.name, reason, cb.cooldown)
	case cb.state == StateClosed && cb.failures >= cb.threshold:
		cb.state = StateOpen
		logger.Warnf("Breaker %s: %d consecutive failed ticks (last: %s), pausing ticks for %s",
			cb.name, cb.failures, reason, cb.cooldown)
	}
}
