package dedup

import (
	"context"
	"sync"
	"time"
)

// Submission records an order the exchange accepted for a reviewed signal.
// It is written before the review queue learns about it, so a failed remote
// update never leads to a second order for the same signal.
type Submission struct {
	SignalID    string
	PositionID  string
	Rate        float64
	Size        float64
	SubmittedAt time.Time
	Pushed      bool
}

type Ledger interface {
	FindSubmission(ctx context.Context, signalID string) (Submission, bool, error)
	RecordSubmission(ctx context.Context, s Submission) error
	MarkPushed(ctx context.Context, signalID string) error
}

// MemoryLedger keeps submissions in process memory.
type MemoryLedger struct {
	mu   sync.Mutex
	subs map[string]Submission
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{subs: make(map[string]Submission)}
}

func (m *MemoryLedger) FindSubmission(_ context.Context, signalID string) (Submission, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[signalID]
	return s, ok, nil
}

func (m *MemoryLedger) RecordSubmission(_ context.Context, s Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.SignalID] = s
	return nil
}

func (m *MemoryLedger) MarkPushed(_ context.Context, signalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[signalID]; ok {
		s.Pushed = true
		m.subs[signalID] = s
	}
	return nil
}

// Remembering puts an in-process copy in front of store. A submission the
// exchange accepted stays findable for the life of the process even when
// store fails to write it.
func Remembering(store Ledger) Ledger {
	if store == nil {
		return NewMemoryLedger()
	}
	if m, ok := store.(*MemoryLedger); ok {
		return m
	}
	return &rememberingLedger{store: store, mem: NewMemoryLedger()}
}

type rememberingLedger struct {
	store Ledger
	mem   *MemoryLedger
}

func (r *rememberingLedger) FindSubmission(ctx context.Context, signalID string) (Submission, bool, error) {
	if s, ok, _ := r.mem.FindSubmission(ctx, signalID); ok {
		return s, true, nil
	}
	s, ok, err := r.store.FindSubmission(ctx, signalID)
	if err != nil || !ok {
		return s, ok, err
	}
	_ = r.mem.RecordSubmission(ctx, s)
	return s, true, nil
}

func (r *rememberingLedger) RecordSubmission(ctx context.Context, s Submission) error {
	_ = r.mem.RecordSubmission(ctx, s)
	return r.store.RecordSubmission(ctx, s)
}

func (r *rememberingLedger) MarkPushed(ctx context.Context, signalID string) error {
	_ = r.mem.MarkPushed(ctx, signalID)
	return r.store.MarkPushed(ctx, signalID)
}
