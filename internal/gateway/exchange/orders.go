package exchange

import (
	"context"

	"cloneexec/internal/logger"
	"cloneexec/internal/pkg/fault"

	"github.com/shopspring/decimal"
)

// SizePrecision is the number of decimals order sizes are rounded to.
const SizePrecision = 8

// BaseForQuote converts a quote amount into base units at rate.
func BaseForQuote(quote, rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	v, _ := decimal.NewFromFloat(quote).DivRound(decimal.NewFromFloat(rate), SizePrecision).Float64()
	return v
}

// QuoteForBase converts a base amount into quote units at rate.
func QuoteForBase(base, rate float64) float64 {
	v, _ := decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(rate)).Round(SizePrecision).Float64()
	return v
}

// Buy spends quote units of asset A at rate, or the whole free asset A when
// quote <= 0. An open buy that has not executed yet is moved to rate instead
// of placing a second order.
func Buy(ctx context.Context, gw Gateway, rate, quote float64) (Position, error) {
	return place(ctx, gw, SideBuy, rate, quote)
}

// Sell offers base units of asset B at rate, or the whole free asset B when
// base <= 0. An open sell is moved like in Buy.
func Sell(ctx context.Context, gw Gateway, rate, base float64) (Position, error) {
	return place(ctx, gw, SideSell, rate, base)
}

func place(ctx context.Context, gw Gateway, side Side, rate, amount float64) (Position, error) {
	if rate <= 0 {
		return Position{}, fault.Rejected("%s at non-positive rate %v", side, rate)
	}
	positions, err := gw.Positions(ctx)
	if err != nil {
		return Position{}, fault.Transient("list positions: %v", err)
	}
	if len(positions) > 0 && positions[0].Side == side && !positions[0].Executed() {
		logger.Infof("Exchange: moving open %s position %s from %v to %v", side, positions[0].ID, positions[0].Rate, rate)
		moved, err := gw.MovePosition(ctx, positions[0], rate)
		if err != nil {
			return Position{}, fault.Rejected("move %s position %s: %v", side, positions[0].ID, err)
		}
		return moved, nil
	}
	bal, err := gw.AvailableBalance(ctx)
	if err != nil {
		return Position{}, fault.Transient("read balance: %v", err)
	}
	req := PutRequest{Side: side, Rate: rate}
	switch side {
	case SideBuy:
		if amount <= 0 {
			amount = bal.AssetA
		}
		if bal.AssetA <= 0 || amount <= 0 {
			return Position{}, fault.Rejected("there is not enough available balance to buy")
		}
		req.SizeQuote = amount
		req.SizeBase = BaseForQuote(amount, rate)
	default:
		if amount <= 0 {
			amount = bal.AssetB
		}
		if bal.AssetB <= 0 || amount <= 0 {
			return Position{}, fault.Rejected("there is not enough available balance to sell")
		}
		req.SizeBase = amount
		req.SizeQuote = QuoteForBase(amount, rate)
	}
	logger.Infof("Exchange: put new %s position rate=%v quote=%v base=%v", side, rate, req.SizeQuote, req.SizeBase)
	pos, err := gw.PutPosition(ctx, req)
	if err != nil {
		return Position{}, fault.Rejected("put %s position: %v", side, err)
	}
	return pos, nil
}
