package agent

import (
	"context"
	"errors"

	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/indicator"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/pkg/fault"
)

// autonomous trades the active record directly. A Sell sells all of asset B
// at the market rate; a Buy spends all of asset A at the record's rate.
func (a *Agent) autonomous(ctx context.Context, t *tick) error {
	rec := t.rec
	var (
		dir    ordermsg.Direction
		rate   float64
		amount float64
		place  func(context.Context, exchange.Gateway, float64, float64) (exchange.Position, error)
	)
	switch {
	case rec.Signal == indicator.SignalSell:
		dir, rate, amount, place = ordermsg.DirectionSell, t.rate, t.bal.AssetB, exchange.Sell
	case rec.Signal == indicator.SignalBuy && t.bal.AssetA > 0:
		dir, rate, amount, place = ordermsg.DirectionBuy, rec.Rate, t.bal.AssetA, exchange.Buy
	default:
		t.log.Infof("nothing to do, no buy or sell opportunity (signal=%s)", rec.Signal)
		return nil
	}

	if !a.guard.ShouldProcess(rec.Sequence) {
		a.metrics.DedupSkip()
		return nil
	}

	pos, err := place(ctx, a.gw, rate, amount)
	if err != nil {
		if !errors.Is(err, fault.ErrExecutionRejected) {
			return err
		}
		t.log.Warnf("%s for record %d rejected: %v", dir, rec.Sequence, err)
		msg := a.base(t)
		msg.From = ordermsg.EntityTradingAssistant
		msg.To = ordermsg.EntitySimulationExecutor
		msg.Order.Rate = rate
		msg.Order.Stop = rec.StopLoss
		msg.Order.TakeProfit = rec.TakeProfit
		msg.Order.Direction = dir
		msg.Order.Size = amount
		msg.Order.Status = ordermsg.StatusRejected
		a.emit(ctx, t, msg)
		a.metrics.Order(ModeAutonomous.String(), string(dir), string(ordermsg.StatusRejected))
		return nil
	}

	if err := a.guard.Commit(ctx, rec.Sequence, rec.StopLoss, rec.TakeProfit); err != nil {
		t.log.Errorf("commit record %d: %v", rec.Sequence, err)
	}
	msg := a.base(t)
	msg.ID = pos.ID
	msg.Order.ID = pos.ID
	msg.Order.Rate = rate
	msg.Order.Stop = rec.StopLoss
	msg.Order.TakeProfit = rec.TakeProfit
	msg.Order.Direction = dir
	msg.Order.Size = amount
	msg.Order.Status = ordermsg.StatusPlaced
	a.emit(ctx, t, msg)
	a.metrics.Order(ModeAutonomous.String(), string(dir), string(ordermsg.StatusPlaced))
	t.log.Infof("%s placed: position=%s rate=%v size=%v", dir, pos.ID, rate, amount)
	return nil
}
