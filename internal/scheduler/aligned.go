// Package scheduler drives agent ticks on wall-clock boundaries.
package scheduler

import (
	"context"
	"time"

	"cloneexec/internal/logger"
)

// Aligned fires a task at every Interval boundary plus Offset. The task
// receives the boundary itself, not the wall time it was woken at.
type Aligned struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAligned(name string, interval, offset time.Duration) *Aligned {
	return &Aligned{Name: name, Interval: interval, Offset: offset, nowFn: time.Now}
}

// Start blocks until ctx is done.
func (s *Aligned) Start(ctx context.Context, task func(at time.Time)) {
	if s == nil || task == nil {
		return
	}
	prefix := "Scheduler"
	if s.Name != "" {
		prefix += "[" + s.Name + "]"
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.Offset < 0 || s.Offset >= s.Interval {
		logger.Warnf("%s: offset=%s outside [0, %s), clamp to 0", prefix, s.Offset, s.Interval)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s offset=%s run_immediately=%v at=%s",
		prefix, s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		task(startAt.Truncate(s.Interval))
	}

	for {
		now := s.nowFn().UTC()
		boundary := nextBoundary(now, s.Interval, s.Offset)
		wakeAt := boundary.Add(s.Offset)
		logger.Debugf("%s: next tick=%s (in %s) uptime=%s", prefix,
			boundary.Format(time.RFC3339), wakeAt.Sub(now).Truncate(time.Second), now.Sub(startAt).Truncate(time.Second))

		if !waitUntil(ctx, s.nowFn, wakeAt) {
			logger.Infof("%s: ctx done, exit", prefix)
			return
		}
		task(boundary)
	}
}

// nextBoundary returns the first boundary whose wake time (boundary+offset)
// is after now.
func nextBoundary(now time.Time, interval, offset time.Duration) time.Time {
	b := now.Add(-offset).Truncate(interval)
	if !b.Add(offset).After(now) {
		b = b.Add(interval)
	}
	return b
}

func waitUntil(ctx context.Context, nowFn func() time.Time, target time.Time) bool {
	wait := target.Sub(nowFn())
	if wait <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
