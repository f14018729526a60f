package paper

import (
	"context"
	"errors"
	"testing"

	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/pkg/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellAllThenFill(t *testing.T) {
	ctx := context.Background()
	gw := New(Options{AssetB: 1, Rate: 4000})

	pos, err := exchange.Sell(ctx, gw, 4000, 0)
	require.NoError(t, err)
	assert.Equal(t, exchange.SideSell, pos.Side)
	assert.Equal(t, 1.0, pos.SizeBase)
	assert.Equal(t, 4000.0, pos.SizeQuote)
	assert.NotEmpty(t, pos.ID)

	bal, err := gw.AvailableBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, bal.AssetB)
	assert.Zero(t, bal.AssetA)

	assert.Equal(t, 1, gw.Execute())
	bal, _ = gw.AvailableBalance(ctx)
	assert.Equal(t, 4000.0, bal.AssetA)

	positions, _ := gw.Positions(ctx)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Executed())
}

func TestBuyMovesOpenBuyInsteadOfPlacingAnother(t *testing.T) {
	ctx := context.Background()
	gw := New(Options{AssetA: 4000, Rate: 4100})

	first, err := exchange.Buy(ctx, gw, 4000, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.SizeBase)

	moved, err := exchange.Buy(ctx, gw, 3200, 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID)
	assert.Equal(t, 3200.0, moved.Rate)
	assert.Equal(t, 1.25, moved.SizeBase)

	positions, _ := gw.Positions(ctx)
	assert.Len(t, positions, 1)
}

func TestAutoFillAndRounding(t *testing.T) {
	ctx := context.Background()
	gw := New(Options{AssetA: 100, Rate: 3, AutoFill: true})

	pos, err := exchange.Buy(ctx, gw, 3, 0)
	require.NoError(t, err)
	assert.True(t, pos.Executed())
	assert.Equal(t, 33.33333333, pos.SizeBase)

	bal, _ := gw.AvailableBalance(ctx)
	assert.Zero(t, bal.AssetA)
	assert.Equal(t, 33.33333333, bal.AssetB)
}

func TestInsufficientBalanceIsRejected(t *testing.T) {
	ctx := context.Background()
	gw := New(Options{Rate: 4000})

	_, err := exchange.Sell(ctx, gw, 4000, 0)
	assert.True(t, errors.Is(err, fault.ErrExecutionRejected))

	_, err = exchange.Buy(ctx, gw, 4000, 0)
	assert.True(t, errors.Is(err, fault.ErrExecutionRejected))

	_, err = gw.PutPosition(ctx, exchange.PutRequest{Side: exchange.SideBuy, Rate: 1, SizeQuote: 10})
	assert.Error(t, err)
}

func TestMarketRate(t *testing.T) {
	gw := New(Options{})
	_, err := gw.MarketRate(context.Background())
	assert.Error(t, err)
	gw.SetMarketRate(4100)
	rate, err := gw.MarketRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4100.0, rate)
}
