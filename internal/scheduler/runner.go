package scheduler

import (
	"context"
	"sync"
	"time"

	"cloneexec/internal/agent"
	"cloneexec/internal/logger"
	"cloneexec/internal/pkg/circuit"
)

// Ticker is what the runner drives; *agent.Agent implements it.
type Ticker interface {
	TickErr(ctx context.Context, at time.Time) (agent.Outcome, error)
}

type RunnerOptions struct {
	RetryDelay time.Duration
	MaxRetries int
	Breaker    *circuit.CircuitBreaker
}

// Runner serializes ticks, retries Retry outcomes after a short delay and
// stops calling a persistently failing agent through a circuit breaker.
type Runner struct {
	ticker     Ticker
	retryDelay time.Duration
	maxRetries int
	breaker    *circuit.CircuitBreaker

	inFlight sync.Mutex
	mu       sync.Mutex
	stats    Stats
}

// Stats is a snapshot of what the runner has done since start.
type Stats struct {
	LastTick    time.Time
	LastOutcome string
	LastError   string
	Ticks       int
	Retries     int
	Dropped     int
	Skipped     int
	Breaker     string
}

func NewRunner(t Ticker, opts RunnerOptions) *Runner {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Runner{ticker: t, retryDelay: opts.RetryDelay, maxRetries: opts.MaxRetries, breaker: opts.Breaker}
}

// RunTick runs the tick for at. A tick still in flight makes this call a
// no-op that reports ok=false.
func (r *Runner) RunTick(ctx context.Context, at time.Time) (outcome agent.Outcome, ok bool) {
	if !r.inFlight.TryLock() {
		logger.Warnf("Runner: tick %s dropped, previous tick still running", at.Format(time.RFC3339))
		r.update(func(s *Stats) { s.Dropped++ })
		return agent.OutcomeOK, false
	}
	defer r.inFlight.Unlock()

	if r.breaker != nil && !r.breaker.Allow() {
		logger.Warnf("Runner: circuit breaker open, skipping tick %s", at.Format(time.RFC3339))
		r.update(func(s *Stats) { s.Skipped++ })
		return agent.OutcomeRetry, false
	}

	var err error
	for attempt := 0; ; attempt++ {
		outcome, err = r.ticker.TickErr(ctx, at)
		if outcome != agent.OutcomeRetry || attempt >= r.maxRetries {
			break
		}
		r.update(func(s *Stats) { s.Retries++ })
		logger.Infof("Runner: retrying tick %s in %s (attempt %d/%d)", at.Format(time.RFC3339), r.retryDelay, attempt+1, r.maxRetries)
		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return agent.OutcomeRetry, true
		case <-timer.C:
		}
	}

	if r.breaker != nil {
		if outcome == agent.OutcomeOK {
			r.breaker.RecordSuccess()
		} else {
			reason := outcome.String()
			if err != nil {
				reason += ": " + err.Error()
			}
			r.breaker.RecordFailure(reason)
		}
	}
	r.update(func(s *Stats) {
		s.Ticks++
		s.LastTick = at
		s.LastOutcome = outcome.String()
		s.LastError = ""
		if err != nil {
			s.LastError = err.Error()
		}
	})
	return outcome, true
}

// Run drives RunTick from an aligned schedule until ctx is done.
func (r *Runner) Run(ctx context.Context, sched *Aligned) error {
	sched.Start(ctx, func(at time.Time) {
		r.RunTick(ctx, at)
	})
	return ctx.Err()
}

func (r *Runner) Stats() Stats {
	r.mu.Lock()
	st := r.stats
	r.mu.Unlock()
	if r.breaker != nil {
		st.Breaker = r.breaker.State().String()
	}
	return st
}

func (r *Runner) update(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}
