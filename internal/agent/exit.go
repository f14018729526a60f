package agent

import (
	"context"
	"errors"

	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/pkg/fault"
	"cloneexec/internal/strategy/exit"
)

// checkExit closes the held position when a protective level is breached.
// done reports that the tick must stop here.
func (a *Agent) checkExit(ctx context.Context, t *tick) (done bool, err error) {
	th := a.thresholds(t)
	decision := exit.Evaluate(t.bal.AssetA, t.rate, th)
	if decision == exit.None {
		return false, nil
	}
	t.log.Infof("closing trade with %s: rate=%v stop=%v take_profit=%v held=%v",
		decision, t.rate, th.StopLoss, th.TakeProfit, t.bal.AssetA)

	pos, err := exchange.Buy(ctx, a.gw, t.rate, t.bal.AssetA)
	if err != nil {
		if !errors.Is(err, fault.ErrExecutionRejected) {
			return true, err
		}
		t.log.Warnf("%s close rejected: %v", decision, err)
		msg := a.base(t)
		msg.From = ordermsg.EntityTradingAssistant
		msg.To = ordermsg.EntitySimulationExecutor
		msg.Order.Rate = t.rate
		msg.Order.Stop = th.StopLoss
		msg.Order.TakeProfit = th.TakeProfit
		msg.Order.Direction = ordermsg.DirectionBuy
		msg.Order.Size = t.bal.AssetA
		msg.Order.Status = ordermsg.StatusRejected
		a.emit(ctx, t, msg)
		a.metrics.Order("exit", string(ordermsg.DirectionBuy), string(ordermsg.StatusRejected))
		return true, nil
	}

	msg := a.base(t)
	msg.ID = pos.ID
	msg.Order.ID = pos.ID
	msg.Order.Rate = t.rate
	msg.Order.Stop = th.StopLoss
	msg.Order.TakeProfit = th.TakeProfit
	msg.Order.Direction = ordermsg.DirectionBuy
	msg.Order.Size = t.bal.AssetA
	msg.Order.Status = ordermsg.StatusPlaced
	msg.Order.ExitOutcome = decision.Outcome()
	a.emit(ctx, t, msg)

	if err := a.guard.Reset(ctx); err != nil {
		t.log.Errorf("reset dedup cursor after %s: %v", decision, err)
	}
	a.metrics.Exit(string(decision.Outcome()))
	a.metrics.Order("exit", string(ordermsg.DirectionBuy), string(ordermsg.StatusPlaced))
	return true, nil
}
