package exit

import (
	"math"
	"testing"

	"cloneexec/internal/ordermsg"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		held float64
		rate float64
		th   Thresholds
		want Decision
	}{
		{"stop breached", 4000, 4100, Thresholds{StopLoss: 4000}, StopLoss},
		{"stop touched", 4000, 4000, Thresholds{StopLoss: 4000}, StopLoss},
		{"below stop", 4000, 3999.99, Thresholds{StopLoss: 4000}, None},
		{"take profit", 4000, 3800, Thresholds{StopLoss: 4200, TakeProfit: 3900}, TakeProfit},
		{"take profit touched", 4000, 3900, Thresholds{TakeProfit: 3900}, TakeProfit},
		{"nothing held", 0, 4100, Thresholds{StopLoss: 4000}, None},
		{"no thresholds", 4000, 4100, Thresholds{}, None},
		{"zero rate", 4000, 0, Thresholds{TakeProfit: 3900}, None},
		{"nan rate", 4000, math.NaN(), Thresholds{StopLoss: 1}, None},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.held, tc.rate, tc.th))
		})
	}
}

func TestStopLossWinsWhenBothBreached(t *testing.T) {
	// Inverted levels make both comparisons true.
	got := Evaluate(100, 4000, Thresholds{StopLoss: 3900, TakeProfit: 4100})
	assert.Equal(t, StopLoss, got)
	assert.Equal(t, ordermsg.ExitStopLoss, got.Outcome())
	assert.Equal(t, ordermsg.ExitTakeProfit, TakeProfit.Outcome())
	assert.Equal(t, ordermsg.ExitNone, None.Outcome())
	assert.Equal(t, "stop_loss", got.String())
}
