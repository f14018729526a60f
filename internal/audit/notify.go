package audit

import (
	"context"
	"fmt"

	"cloneexec/internal/gateway/notifier"
	"cloneexec/internal/ordermsg"
)

// NotifySink forwards messages to a chat. Only statuses in Statuses are sent;
// an empty set sends everything.
type NotifySink struct {
	Notifier notifier.TextNotifier
	CloneID  string
	Statuses map[ordermsg.Status]bool
}

func NewNotifySink(n notifier.TextNotifier, cloneID string, statuses ...ordermsg.Status) *NotifySink {
	set := make(map[ordermsg.Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return &NotifySink{Notifier: n, CloneID: cloneID, Statuses: set}
}

func (s *NotifySink) Append(ctx context.Context, msg ordermsg.Message) error {
	if s.Notifier == nil {
		return nil
	}
	if len(s.Statuses) > 0 && !s.Statuses[msg.Order.Status] {
		return nil
	}
	return s.Notifier.SendText(ctx, Card(s.CloneID, msg).Markdown())
}

// Card renders msg for chat delivery.
func Card(cloneID string, msg ordermsg.Message) notifier.Card {
	o := msg.Order
	c := notifier.Card{
		Icon:      statusIcon(o.Status, o.ExitOutcome),
		Title:     fmt.Sprintf("%s %s %s", cloneID, o.Direction, statusName(o.Status)),
		Timestamp: msg.Time(),
	}
	c.Add("market", o.Market)
	c.Add("route", fmt.Sprintf("%s -> %s", msg.From, msg.To))
	c.Add("order", o.ID)
	c.Add("rate", o.Rate)
	c.Add("size", o.Size)
	if o.SizeFilled > 0 {
		c.Add("filled", o.SizeFilled)
	}
	if o.Stop > 0 {
		c.Add("stop", o.Stop)
	}
	if o.TakeProfit > 0 {
		c.Add("take profit", o.TakeProfit)
	}
	if o.ExitOutcome != ordermsg.ExitNone {
		c.Add("exit", o.ExitOutcome)
	}
	return c
}

func statusName(s ordermsg.Status) string {
	switch s {
	case ordermsg.StatusSignaled:
		return "signaled"
	case ordermsg.StatusManualAuthorized:
		return "authorized"
	case ordermsg.StatusPlaced:
		return "placed"
	case ordermsg.StatusFilled:
		return "filled"
	case ordermsg.StatusRejected:
		return "rejected"
	default:
		return string(s)
	}
}

func statusIcon(s ordermsg.Status, exit ordermsg.ExitOutcome) string {
	switch {
	case exit == ordermsg.ExitStopLoss:
		return "🛑"
	case exit == ordermsg.ExitTakeProfit:
		return "🎯"
	case s == ordermsg.StatusRejected:
		return "⚠️"
	case s == ordermsg.StatusFilled:
		return "✅"
	default:
		return "📈"
	}
}
