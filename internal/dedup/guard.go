// Package dedup remembers the last engine message the agent acted on, plus
// the protective exit thresholds that came with it.
package dedup

import (
	"context"
	"sync"
	"time"

	"cloneexec/internal/logger"
	"cloneexec/internal/pkg/fault"
)

// Cursor is the state carried across ticks for one clone.
type Cursor struct {
	LastSequence   int64
	LastStopLoss   float64
	LastTakeProfit float64
	UpdatedAt      time.Time
}

// Store persists cursors. Implementations must be safe for use by one tick at a time.
type Store interface {
	LoadCursor(ctx context.Context, cloneID string) (Cursor, bool, error)
	SaveCursor(ctx context.Context, cloneID string, c Cursor) error
}

// Guard gates sequences so a redelivered indicator row is a no-op.
type Guard struct {
	store   Store
	cloneID string
	nowFn   func() time.Time

	mu     sync.Mutex
	cursor Cursor
	loaded bool
}

func NewGuard(store Store, cloneID string) *Guard {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Guard{store: store, cloneID: cloneID, nowFn: time.Now}
}

// Load reads the persisted cursor once; later calls are no-ops.
func (g *Guard) Load(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loaded {
		return nil
	}
	c, ok, err := g.store.LoadCursor(ctx, g.cloneID)
	if err != nil {
		return fault.Transient("load dedup cursor: %v", err)
	}
	if ok {
		g.cursor = c
	}
	g.loaded = true
	return nil
}

func (g *Guard) Cursor() Cursor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursor
}

// ShouldProcess reports whether seq is newer than the last committed one.
func (g *Guard) ShouldProcess(seq int64) bool {
	g.mu.Lock()
	last := g.cursor.LastSequence
	g.mu.Unlock()
	if seq <= last {
		logger.Infof("Dedup: message %d already processed (last=%d), skipping", seq, last)
		return false
	}
	return true
}

// Thresholds returns the stop loss and take profit remembered from the last commit.
func (g *Guard) Thresholds() (stop, takeProfit float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursor.LastStopLoss, g.cursor.LastTakeProfit
}

// Commit advances the cursor. The in-memory cursor moves even if persisting
// fails, so the same process never acts twice on seq.
func (g *Guard) Commit(ctx context.Context, seq int64, stop, takeProfit float64) error {
	g.mu.Lock()
	if seq < g.cursor.LastSequence {
		g.mu.Unlock()
		return nil
	}
	g.cursor = Cursor{
		LastSequence:   seq,
		LastStopLoss:   stop,
		LastTakeProfit: takeProfit,
		UpdatedAt:      g.nowFn().UTC(),
	}
	c := g.cursor
	g.mu.Unlock()
	return g.persist(ctx, c)
}

// Reset zeroes the cursor after a protective exit closed the position:
// the sequence and both protective levels start over.
func (g *Guard) Reset(ctx context.Context) error {
	g.mu.Lock()
	g.cursor = Cursor{UpdatedAt: g.nowFn().UTC()}
	c := g.cursor
	g.mu.Unlock()
	return g.persist(ctx, c)
}

// Restore replaces the cursor, used by the admin surface.
func (g *Guard) Restore(ctx context.Context, c Cursor) error {
	g.mu.Lock()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = g.nowFn().UTC()
	}
	g.cursor = c
	g.loaded = true
	g.mu.Unlock()
	return g.persist(ctx, c)
}

func (g *Guard) persist(ctx context.Context, c Cursor) error {
	if err := g.store.SaveCursor(ctx, g.cloneID, c); err != nil {
		return fault.Transient("save dedup cursor: %v", err)
	}
	return nil
}

// MemoryStore keeps cursors in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[string]Cursor
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]Cursor)}
}

func (m *MemoryStore) LoadCursor(_ context.Context, cloneID string) (Cursor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[cloneID]
	return c, ok, nil
}

func (m *MemoryStore) SaveCursor(_ context.Context, cloneID string, c Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[cloneID] = c
	return nil
}
