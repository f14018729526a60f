// Package exit decides whether a held short exposure must be force-closed.
//
// After a Sell the agent holds the quote asset. A rising rate is the loss
// side: the stop loss sits above the entry and the take profit below it.
package exit

import (
	"math"

	"cloneexec/internal/ordermsg"

	"github.com/shopspring/decimal"
)

type Decision int

const (
	None Decision = iota
	StopLoss
	TakeProfit
)

func (d Decision) String() string {
	switch d {
	case StopLoss:
		return "stop_loss"
	case TakeProfit:
		return "take_profit"
	default:
		return "none"
	}
}

// Outcome maps the decision to the order message exit outcome.
func (d Decision) Outcome() ordermsg.ExitOutcome {
	switch d {
	case StopLoss:
		return ordermsg.ExitStopLoss
	case TakeProfit:
		return ordermsg.ExitTakeProfit
	default:
		return ordermsg.ExitNone
	}
}

// Thresholds are the active protective levels; zero disables a level.
type Thresholds struct {
	StopLoss   float64
	TakeProfit float64
}

// Evaluate applies the exit rule. Stop loss is checked first and wins when
// both levels are breached.
func Evaluate(heldQuote, rate float64, th Thresholds) Decision {
	if !positive(heldQuote) || !positive(rate) {
		return None
	}
	if positive(th.StopLoss) && gte(rate, th.StopLoss) {
		return StopLoss
	}
	if positive(th.TakeProfit) && lte(rate, th.TakeProfit) {
		return TakeProfit
	}
	return None
}

func dec(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func positive(v float64) bool { return dec(v).IsPositive() }
func gte(a, b float64) bool    { return dec(a).Cmp(dec(b)) >= 0 }
func lte(a, b float64) bool    { return dec(a).Cmp(dec(b)) <= 0 }
