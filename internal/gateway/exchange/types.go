// Package exchange defines the position gateway the agent trades through.
// Backends (the in-process paper exchange, the REST bridge to a real
// exchange sidecar) implement Gateway so the agent logic never changes.
package exchange

import (
	"strings"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type PositionStatus string

const (
	StatusOpen     PositionStatus = "open"
	StatusExecuted PositionStatus = "executed"
)

// Position is the exchange's view of an order. The agent only reads it and
// asks the gateway to create or move it.
type Position struct {
	ID        string         `json:"id"`
	Side      Side           `json:"side"`
	Rate      float64        `json:"rate"`
	SizeBase  float64        `json:"size_base"`  // amount of asset B
	SizeQuote float64        `json:"size_quote"` // amount of asset A
	Status    PositionStatus `json:"status"`
	OpenedAt  time.Time      `json:"opened_at"`
}

// Executed reports whether the exchange filled the order.
func (p Position) Executed() bool {
	return strings.EqualFold(string(p.Status), string(StatusExecuted))
}

// Balance holds the free amounts of both assets. AssetA is the quote asset
// (e.g. USDT) and AssetB the base asset (e.g. BTC).
type Balance struct {
	AssetA float64 `json:"asset_a"`
	AssetB float64 `json:"asset_b"`
}

// PutRequest asks for a new limit order.
type PutRequest struct {
	Side      Side    `json:"side"`
	Rate      float64 `json:"rate"`
	SizeQuote float64 `json:"size_quote"`
	SizeBase  float64 `json:"size_base"`
}
