package exchange

import "context"

// Gateway is the agent's only route to the market.
type Gateway interface {
	Name() string

	PutPosition(ctx context.Context, req PutRequest) (Position, error)

	// MovePosition re-prices an open order.
	MovePosition(ctx context.Context, pos Position, rate float64) (Position, error)

	// Positions lists the agent's positions, most recent first.
	Positions(ctx context.Context) ([]Position, error)

	AvailableBalance(ctx context.Context) (Balance, error)

	MarketRate(ctx context.Context) (float64, error)
}
