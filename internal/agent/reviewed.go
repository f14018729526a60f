package agent

import (
	"context"
	"errors"
	"time"

	"cloneexec/internal/dedup"
	"cloneexec/internal/gateway/cockpit"
	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/indicator"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/pkg/fault"
)

// reviewed advances at most one signal one stage. Open states are queried in
// priority order and the first state with a signal is the tick's work.
func (a *Agent) reviewed(ctx context.Context, t *tick) error {
	if a.queue == nil {
		return fault.Configuration("reviewed mode needs a review queue")
	}
	sig, state, err := a.pendingSignal(ctx)
	if err != nil {
		return err
	}
	switch state {
	case cockpit.StateProposed:
		return a.refreshProposed(ctx, t, sig)
	case cockpit.StateApproved:
		return a.submitApproved(ctx, t, sig)
	case cockpit.StateSubmitted:
		return a.completeSubmitted(ctx, t, sig)
	default:
		return a.proposeNew(ctx, t)
	}
}

func (a *Agent) pendingSignal(ctx context.Context) (cockpit.Signal, cockpit.State, error) {
	for _, st := range cockpit.OpenStates {
		sigs, err := a.queue.SignalsByCloneID(ctx, a.cloneID, st)
		if err != nil {
			return cockpit.Signal{}, cockpit.StateUnknown, queryError(err)
		}
		if len(sigs) > 0 {
			return sigs[0], st, nil
		}
	}
	return cockpit.Signal{}, cockpit.StateUnknown, nil
}

// refreshProposed keeps a waiting signal priced at the current market.
func (a *Agent) refreshProposed(ctx context.Context, t *tick, sig cockpit.Signal) error {
	t.log.Infof("signal %s waiting for approval, refreshing with latest market data", sig.ID)
	msg := a.base(t)
	msg.To = ordermsg.EntityTradingCockpit
	msg.Kind = ordermsg.KindOrderUpdate
	msg.Order.Rate = t.rate
	msg.Order.Stop = t.rec.StopLoss
	msg.Order.TakeProfit = t.rec.TakeProfit
	msg.Order.Direction = t.rec.Message.Order.Direction
	msg.Order.Size = t.bal.AssetB
	msg.Order.Status = ordermsg.StatusSignaled

	if handled, err := a.push(ctx, t, sig.ID, msg); handled {
		return err
	}
	a.emit(ctx, t, msg)
	a.metrics.Transition(cockpit.StateProposed.String())
	return nil
}

// submitApproved places the order exactly as the reviewer approved it.
func (a *Agent) submitApproved(ctx context.Context, t *tick, sig cockpit.Signal) error {
	t.log.Infof("executing approved signal %s: %s rate=%v size=%v", sig.ID, sig.Order.Direction, sig.Order.Rate, sig.Order.Size)

	received := a.base(t)
	received.From = ordermsg.EntityTradingCockpit
	received.To = ordermsg.EntitySimulationExecutor
	received.Order = sig.Order
	received.Order.Status = ordermsg.StatusManualAuthorized

	sub, found, err := a.ledger.FindSubmission(ctx, sig.ID)
	if err != nil {
		return fault.Transient("read submission ledger: %v", err)
	}
	if found {
		if sub.Pushed {
			t.log.Infof("signal %s already pushed as position %s, waiting for cockpit to move it", sig.ID, sub.PositionID)
			return nil
		}
		t.log.Infof("signal %s already submitted as position %s, re-pushing submitted state", sig.ID, sub.PositionID)
		return a.pushSubmitted(ctx, t, sig, submittedMessage(a.base(t), sig, sub))
	}
	a.emit(ctx, t, received)

	pos, err := a.placeApproved(ctx, sig.Order)
	if err != nil {
		if !errors.Is(err, fault.ErrExecutionRejected) {
			return err
		}
		t.log.Warnf("approved signal %s rejected by exchange: %v", sig.ID, err)
		msg := a.base(t)
		msg.To = ordermsg.EntityTradingCockpit
		msg.Order = sig.Order
		msg.Order.DateTime = t.at.UnixMilli()
		msg.Order.Status = ordermsg.StatusRejected
		a.emit(ctx, t, msg)
		a.metrics.Order(ModeReviewed.String(), string(sig.Order.Direction), string(ordermsg.StatusRejected))
		if handled, err := a.push(ctx, t, sig.ID, msg); handled {
			return err
		}
		a.metrics.Transition(cockpit.StateRejected.String())
		return nil
	}

	sub = dedup.Submission{
		SignalID:    sig.ID,
		PositionID:  pos.ID,
		Rate:        pos.Rate,
		Size:        pos.SizeBase,
		SubmittedAt: submittedAt(pos, t.at),
	}
	if err := a.ledger.RecordSubmission(ctx, sub); err != nil {
		t.log.Errorf("record submission of signal %s: %v", sig.ID, err)
	}
	msg := submittedMessage(a.base(t), sig, sub)
	a.emit(ctx, t, msg)
	a.metrics.Order(ModeReviewed.String(), string(sig.Order.Direction), string(ordermsg.StatusPlaced))
	return a.pushSubmitted(ctx, t, sig, msg)
}

func (a *Agent) placeApproved(ctx context.Context, o ordermsg.Order) (exchange.Position, error) {
	switch o.Direction {
	case ordermsg.DirectionSell:
		return exchange.Sell(ctx, a.gw, o.Rate, o.Size)
	case ordermsg.DirectionBuy:
		return exchange.Buy(ctx, a.gw, o.Rate, exchange.QuoteForBase(o.Size, o.Rate))
	default:
		return exchange.Position{}, fault.Rejected("approved order has no direction")
	}
}

func (a *Agent) pushSubmitted(ctx context.Context, t *tick, sig cockpit.Signal, msg ordermsg.Message) error {
	if handled, err := a.push(ctx, t, sig.ID, msg); handled {
		return err
	}
	if err := a.ledger.MarkPushed(ctx, sig.ID); err != nil {
		t.log.Warnf("mark signal %s pushed: %v", sig.ID, err)
	}
	a.metrics.Transition(cockpit.StateSubmitted.String())
	return nil
}

// completeSubmitted closes the signal once its position left the book.
func (a *Agent) completeSubmitted(ctx context.Context, t *tick, sig cockpit.Signal) error {
	positions, err := a.gw.Positions(ctx)
	if err != nil {
		return fault.Transient("list positions: %v", err)
	}
	if len(positions) > 0 && !positions[0].Executed() {
		t.log.Infof("submitted signal %s still open as position %s", sig.ID, positions[0].ID)
		return nil
	}
	t.log.Infof("submitted signal %s filled", sig.ID)

	msg := a.base(t)
	msg.ID = sig.Order.ID
	msg.To = ordermsg.EntityTradingCockpit
	msg.Kind = ordermsg.KindOrderUpdate
	msg.Order = sig.Order
	msg.Order.Status = ordermsg.StatusFilled
	msg.Order.SizeFilled = sig.Order.Size

	if handled, err := a.push(ctx, t, sig.ID, msg); handled {
		return err
	}
	a.emit(ctx, t, msg)
	a.metrics.Transition(cockpit.StateCompleted.String())
	return nil
}

// proposeNew opens a signal for a fresh Sell record.
func (a *Agent) proposeNew(ctx context.Context, t *tick) error {
	rec := t.rec
	if rec.Signal != indicator.SignalSell {
		t.log.Infof("nothing to do, no sell opportunity (signal=%s)", rec.Signal)
		return nil
	}
	if !a.guard.ShouldProcess(rec.Sequence) {
		a.metrics.DedupSkip()
		return nil
	}
	t.log.Infof("creating new signal for record %d", rec.Sequence)

	msg := a.base(t)
	msg.To = ordermsg.EntityTradingCockpit
	msg.Order.Status = ordermsg.StatusSignaled
	msg.Order.Rate = t.rate
	msg.Order.Direction = ordermsg.DirectionSell
	msg.Order.TakeProfit = rec.TakeProfit
	msg.Order.Stop = rec.StopLoss
	msg.Order.Size = t.bal.AssetB
	a.emit(ctx, t, msg)

	created, err := a.queue.CreateSignal(ctx, a.cloneID, msg)
	if err != nil {
		var apiErr *cockpit.APIError
		if errors.As(err, &apiErr) {
			t.log.Errorf("create signal: %v", err)
			return nil
		}
		return err
	}
	if err := a.guard.Commit(ctx, rec.Sequence, rec.StopLoss, rec.TakeProfit); err != nil {
		t.log.Errorf("commit record %d: %v", rec.Sequence, err)
	}
	a.metrics.Transition(cockpit.StateProposed.String())
	t.log.Infof("signal %s created", created.ID)
	return nil
}

// push sends msg to signal id. handled is true when the caller must stop and
// return err: transport failures retry the tick, application errors are
// logged and end it.
func (a *Agent) push(ctx context.Context, t *tick, id string, msg ordermsg.Message) (handled bool, err error) {
	err = a.queue.UpdateSignal(ctx, id, msg)
	if err == nil {
		return false, nil
	}
	var apiErr *cockpit.APIError
	if errors.As(err, &apiErr) {
		t.log.Errorf("update signal %s to %s: %v", id, msg.Order.Status, err)
		return true, nil
	}
	return true, err
}

func submittedMessage(base ordermsg.Message, sig cockpit.Signal, sub dedup.Submission) ordermsg.Message {
	ms := sub.SubmittedAt.UnixMilli()
	msg := base
	msg.ID = sub.PositionID
	msg.DateTime = ms
	msg.Order = sig.Order
	msg.Order.ID = sub.PositionID
	msg.Order.DateTime = ms
	msg.Order.Rate = sub.Rate
	msg.Order.Size = sub.Size
	msg.Order.Status = ordermsg.StatusPlaced
	msg.Order.SizeFilled = 0
	return msg
}

func submittedAt(pos exchange.Position, fallback time.Time) time.Time {
	if pos.OpenedAt.IsZero() {
		return fallback
	}
	return pos.OpenedAt
}

// queryError keeps application errors from the review queue retryable:
// without the open signals the tick cannot decide anything.
func queryError(err error) error {
	var apiErr *cockpit.APIError
	if errors.As(err, &apiErr) {
		return fault.Transient("query signals: %v", err)
	}
	return err
}
