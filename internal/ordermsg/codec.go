package ordermsg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	packedMessageFields = 6
	packedOrderFields   = 16
)

// Pack renders the positional array form used inside indicator rows:
//
//	[id, from, to, kind, dateTime, [orderId, creator, dateTime, owner, exchange,
//	 market, marginEnabled, type, rate, stop, takeProfit, direction, size,
//	 status, sizeFilled, exitOutcome]]
func Pack(m Message) ([]byte, error) {
	o := m.Order
	margin := 0
	if o.MarginEnabled {
		margin = 1
	}
	order := []any{
		packID(o.ID), o.Creator, o.DateTime, o.Owner, o.Exchange,
		o.Market, margin, o.Type, o.Rate, o.Stop, o.TakeProfit, string(o.Direction), o.Size,
		string(o.Status), o.SizeFilled, string(o.ExitOutcome),
	}
	return json.Marshal([]any{packID(m.ID), string(m.From), string(m.To), string(m.Kind), m.DateTime, order})
}

// Unpack decodes the positional array form produced by Pack.
func Unpack(raw gjson.Result) (Message, error) {
	if !raw.IsArray() {
		return Message{}, fmt.Errorf("order message must be an array, got %s", raw.Type)
	}
	fields := raw.Array()
	if len(fields) < packedMessageFields {
		return Message{}, fmt.Errorf("order message has %d fields, want %d", len(fields), packedMessageFields)
	}
	orderRaw := fields[5]
	if !orderRaw.IsArray() {
		return Message{}, fmt.Errorf("order message field 5 must be an array")
	}
	of := orderRaw.Array()
	if len(of) < packedOrderFields {
		return Message{}, fmt.Errorf("order payload has %d fields, want %d", len(of), packedOrderFields)
	}
	return Message{
		ID:       idString(fields[0]),
		From:     Entity(fields[1].String()),
		To:       Entity(fields[2].String()),
		Kind:     Kind(fields[3].String()),
		DateTime: fields[4].Int(),
		Order: Order{
			ID:            idString(of[0]),
			Creator:       of[1].String(),
			DateTime:      of[2].Int(),
			Owner:         of[3].String(),
			Exchange:      of[4].String(),
			Market:        of[5].String(),
			MarginEnabled: of[6].Int() != 0 || of[6].Bool(),
			Type:          of[7].String(),
			Rate:          of[8].Float(),
			Stop:          of[9].Float(),
			TakeProfit:    of[10].Float(),
			Direction:     Direction(strings.ToUpper(of[11].String())),
			Size:          of[12].Float(),
			Status:        Status(of[13].String()),
			SizeFilled:    of[14].Float(),
			ExitOutcome:   ExitOutcome(of[15].String()),
		},
	}, nil
}

// UnpackBytes is Unpack over raw JSON.
func UnpackBytes(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, fmt.Errorf("order message is not valid json")
	}
	return Unpack(gjson.ParseBytes(data))
}

func idString(r gjson.Result) string {
	if r.Type == gjson.Number {
		return strconv.FormatInt(r.Int(), 10)
	}
	s := strings.TrimSpace(r.String())
	if s == "" {
		return "0"
	}
	return s
}

// packID keeps numeric ids numeric on the wire.
func packID(id string) any {
	if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
		return n
	}
	return id
}
