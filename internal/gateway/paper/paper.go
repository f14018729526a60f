// Package paper is an in-memory exchange used for dry runs and replays.
// Orders reserve funds when placed and settle when Execute fills them.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloneexec/internal/gateway/exchange"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Options struct {
	AssetA float64
	AssetB float64
	Rate   float64
	// AutoFill executes every order as soon as it is placed or moved.
	AutoFill bool
}

// Gateway keeps balances with decimal precision and a single market rate.
type Gateway struct {
	mu        sync.Mutex
	assetA    decimal.Decimal
	assetB    decimal.Decimal
	rate      float64
	autoFill  bool
	positions []exchange.Position // most recent first
	nowFn     func() time.Time
}

var _ exchange.Gateway = (*Gateway)(nil)

func New(opts Options) *Gateway {
	return &Gateway{
		assetA:   decimal.NewFromFloat(opts.AssetA),
		assetB:   decimal.NewFromFloat(opts.AssetB),
		rate:     opts.Rate,
		autoFill: opts.AutoFill,
		nowFn:    time.Now,
	}
}

func (g *Gateway) Name() string { return "paper" }

func (g *Gateway) SetMarketRate(rate float64) {
	g.mu.Lock()
	g.rate = rate
	g.mu.Unlock()
}

func (g *Gateway) MarketRate(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rate <= 0 {
		return 0, fmt.Errorf("paper market rate not set")
	}
	return g.rate, nil
}

func (g *Gateway) AvailableBalance(ctx context.Context) (exchange.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, _ := g.assetA.Float64()
	b, _ := g.assetB.Float64()
	return exchange.Balance{AssetA: a, AssetB: b}, nil
}

func (g *Gateway) Positions(ctx context.Context) ([]exchange.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]exchange.Position(nil), g.positions...), nil
}

func (g *Gateway) PutPosition(ctx context.Context, req exchange.PutRequest) (exchange.Position, error) {
	if req.Rate <= 0 {
		return exchange.Position{}, fmt.Errorf("rate must be > 0")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch req.Side {
	case exchange.SideBuy:
		cost := decimal.NewFromFloat(req.SizeQuote)
		if !cost.IsPositive() || g.assetA.LessThan(cost) {
			return exchange.Position{}, fmt.Errorf("insufficient %s balance: have %s need %s", "asset A", g.assetA, cost)
		}
		g.assetA = g.assetA.Sub(cost)
	case exchange.SideSell:
		size := decimal.NewFromFloat(req.SizeBase)
		if !size.IsPositive() || g.assetB.LessThan(size) {
			return exchange.Position{}, fmt.Errorf("insufficient %s balance: have %s need %s", "asset B", g.assetB, size)
		}
		g.assetB = g.assetB.Sub(size)
	default:
		return exchange.Position{}, fmt.Errorf("unknown side %q", req.Side)
	}
	pos := exchange.Position{
		ID:        uuid.New().String(),
		Side:      req.Side,
		Rate:      req.Rate,
		SizeBase:  req.SizeBase,
		SizeQuote: req.SizeQuote,
		Status:    exchange.StatusOpen,
		OpenedAt:  g.nowFn().UTC(),
	}
	g.positions = append([]exchange.Position{pos}, g.positions...)
	if g.autoFill {
		g.fillLocked(0)
		pos = g.positions[0]
	}
	return pos, nil
}

func (g *Gateway) MovePosition(ctx context.Context, pos exchange.Position, rate float64) (exchange.Position, error) {
	if rate <= 0 {
		return exchange.Position{}, fmt.Errorf("rate must be > 0")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.indexLocked(pos.ID)
	if idx < 0 {
		return exchange.Position{}, fmt.Errorf("position %s not found", pos.ID)
	}
	cur := g.positions[idx]
	if cur.Executed() {
		return exchange.Position{}, fmt.Errorf("position %s already executed", pos.ID)
	}
	cur.Rate = rate
	if cur.Side == exchange.SideBuy {
		cur.SizeBase = exchange.BaseForQuote(cur.SizeQuote, rate)
	} else {
		cur.SizeQuote = exchange.QuoteForBase(cur.SizeBase, rate)
	}
	g.positions[idx] = cur
	if g.autoFill {
		g.fillLocked(idx)
	}
	return g.positions[idx], nil
}

// Execute fills every open position and returns how many were filled.
func (g *Gateway) Execute() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for i := range g.positions {
		if !g.positions[i].Executed() {
			g.fillLocked(i)
			n++
		}
	}
	return n
}

func (g *Gateway) fillLocked(i int) {
	p := &g.positions[i]
	if p.Executed() {
		return
	}
	switch p.Side {
	case exchange.SideBuy:
		g.assetB = g.assetB.Add(decimal.NewFromFloat(p.SizeBase))
	case exchange.SideSell:
		g.assetA = g.assetA.Add(decimal.NewFromFloat(p.SizeQuote))
	}
	p.Status = exchange.StatusExecuted
}

func (g *Gateway) indexLocked(id string) int {
	for i := range g.positions {
		if g.positions[i].ID == id {
			return i
		}
	}
	return -1
}
