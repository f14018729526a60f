// Package indicator loads the simulation engine's time-bucketed indicator
// tables and resolves the row that is active for a tick.
package indicator

import (
	"time"

	"cloneexec/internal/ordermsg"

	"github.com/tidwall/gjson"
)

type Signal string

const (
	SignalNone Signal = "none"
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

// Row layout of one indicator bucket.
const (
	fieldBegin     = 0
	fieldEnd       = 1
	fieldRate      = 3
	fieldMessage   = 25
	rowFieldsTotal = 26
)

// Record is one decoded bucket. It is read-only once returned by a Resolver.
type Record struct {
	Begin      time.Time
	End        time.Time
	Signal     Signal
	Sequence   int64
	Rate       float64
	StopLoss   float64
	TakeProfit float64
	Message    ordermsg.Message
}

// Contains reports whether tick falls in [Begin, End).
func (r Record) Contains(tick time.Time) bool {
	return !tick.Before(r.Begin) && tick.Before(r.End)
}

func decodeRecord(row gjson.Result) (Record, error) {
	msg, err := ordermsg.Unpack(row.Get(itoa(fieldMessage)))
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Begin:      time.UnixMilli(row.Get(itoa(fieldBegin)).Int()).UTC(),
		End:        time.UnixMilli(row.Get(itoa(fieldEnd)).Int()).UTC(),
		Signal:     signalOf(msg),
		Rate:       msg.Order.Rate,
		StopLoss:   msg.Order.Stop,
		TakeProfit: msg.Order.TakeProfit,
		Message:    msg,
	}
	if rec.Rate <= 0 {
		rec.Rate = row.Get(itoa(fieldRate)).Float()
	}
	if seq, ok := msg.Sequence(); ok {
		rec.Sequence = seq
	}
	return rec, nil
}

func signalOf(msg ordermsg.Message) Signal {
	if msg.Kind != ordermsg.KindOrder {
		return SignalNone
	}
	switch msg.Order.Direction {
	case ordermsg.DirectionSell:
		return SignalSell
	case ordermsg.DirectionBuy:
		return SignalBuy
	default:
		return SignalNone
	}
}
