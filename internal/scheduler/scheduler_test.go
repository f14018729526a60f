package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"cloneexec/internal/agent"
	"cloneexec/internal/pkg/circuit"
	"cloneexec/internal/pkg/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBoundary(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		now    time.Time
		offset time.Duration
		want   time.Time
	}{
		{base.Add(30 * time.Second), 0, base.Add(time.Minute)},
		{base, 0, base.Add(time.Minute)},
		{base.Add(2 * time.Second), 5 * time.Second, base},
		{base.Add(5 * time.Second), 5 * time.Second, base.Add(time.Minute)},
		{base.Add(59 * time.Second), 5 * time.Second, base.Add(time.Minute)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, nextBoundary(tc.now, time.Minute, tc.offset), "now=%s", tc.now)
	}
}

func TestAlignedRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var got []time.Time
	s := NewAligned("test", time.Hour, 0)
	s.RunImmediately = true
	s.nowFn = func() time.Time { return time.Date(2024, 1, 1, 10, 17, 3, 0, time.UTC) }

	done := make(chan struct{})
	go func() {
		s.Start(ctx, func(at time.Time) { got = append(got, at) })
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), got[0])
}

type scriptedTicker struct {
	mu       sync.Mutex
	outcomes []agent.Outcome
	calls    int
	entered  chan struct{}
	block    chan struct{}
}

func (s *scriptedTicker) TickErr(context.Context, time.Time) (agent.Outcome, error) {
	if s.block != nil {
		close(s.entered)
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.outcomes) == 0 {
		return agent.OutcomeOK, nil
	}
	o := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	if o == agent.OutcomeRetry {
		return o, fault.Transient("flaky")
	}
	return o, nil
}

func TestRunnerRetriesThenSucceeds(t *testing.T) {
	tk := &scriptedTicker{outcomes: []agent.Outcome{agent.OutcomeRetry, agent.OutcomeRetry, agent.OutcomeOK}}
	r := NewRunner(tk, RunnerOptions{RetryDelay: time.Millisecond, MaxRetries: 3})

	outcome, ran := r.RunTick(context.Background(), time.Now())
	assert.True(t, ran)
	assert.Equal(t, agent.OutcomeOK, outcome)
	assert.Equal(t, 3, tk.calls)
	st := r.Stats()
	assert.Equal(t, 2, st.Retries)
	assert.Equal(t, "ok", st.LastOutcome)
}

func TestRunnerGivesUpAfterMaxRetries(t *testing.T) {
	tk := &scriptedTicker{outcomes: []agent.Outcome{agent.OutcomeRetry, agent.OutcomeRetry, agent.OutcomeRetry}}
	r := NewRunner(tk, RunnerOptions{RetryDelay: time.Millisecond, MaxRetries: 1})

	outcome, _ := r.RunTick(context.Background(), time.Now())
	assert.Equal(t, agent.OutcomeRetry, outcome)
	assert.Equal(t, 2, tk.calls)
	assert.Contains(t, r.Stats().LastError, "flaky")
}

func TestRunnerDropsOverlappingTick(t *testing.T) {
	tk := &scriptedTicker{entered: make(chan struct{}), block: make(chan struct{})}
	r := NewRunner(tk, RunnerOptions{})

	done := make(chan struct{})
	go func() {
		r.RunTick(context.Background(), time.Now())
		close(done)
	}()
	<-tk.entered

	_, ran := r.RunTick(context.Background(), time.Now())
	assert.False(t, ran)
	close(tk.block)
	<-done
	assert.Equal(t, 1, r.Stats().Dropped)
	assert.Equal(t, 1, r.Stats().Ticks)
}

func TestRunnerBreakerSkipsTicks(t *testing.T) {
	tk := &scriptedTicker{outcomes: []agent.Outcome{agent.OutcomeFail}}
	cb := circuit.NewCircuitBreaker("test", 1, time.Hour)
	r := NewRunner(tk, RunnerOptions{Breaker: cb})

	outcome, _ := r.RunTick(context.Background(), time.Now())
	assert.Equal(t, agent.OutcomeFail, outcome)
	assert.Equal(t, circuit.StateOpen, cb.State())

	_, ran := r.RunTick(context.Background(), time.Now())
	assert.False(t, ran)
	assert.Equal(t, 1, tk.calls)
	assert.Equal(t, 1, r.Stats().Skipped)
	assert.Equal(t, "open", r.Stats().Breaker)
	assert.Equal(t, "fail", cb.Snapshot().LastReason)
}
