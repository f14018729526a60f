// Package ordermsg models the order messages exchanged between the simulation
// engine, the executor, the trading assistant and the review cockpit.
package ordermsg

import (
	"strconv"
	"strings"
	"time"
)

// Entity identifies the origin or destination role of a message.
type Entity string

const (
	EntitySimulationEngine   Entity = "EN"
	EntitySimulationExecutor Entity = "EX"
	EntityTradingAssistant   Entity = "TA"
	EntityTradingCockpit     Entity = "TC"
)

// Kind is the message kind: a new order or an update to an existing one.
type Kind string

const (
	KindOrder       Kind = "ORD"
	KindOrderUpdate Kind = "UPD"
)

type Direction string

const (
	DirectionNone Direction = ""
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Status is the order status as recorded in messages and on the cockpit.
type Status string

const (
	StatusSignaled         Status = "SIG"
	StatusManualAuthorized Status = "MAU"
	StatusPlaced           Status = "PLA"
	StatusFilled           Status = "FIL"
	StatusRejected         Status = "REJ"
)

type ExitOutcome string

const (
	ExitNone       ExitOutcome = ""
	ExitStopLoss   ExitOutcome = "SL"
	ExitTakeProfit ExitOutcome = "TP"
)

const (
	CreatorSimulationEngine = "SE"
	OwnerUser               = "U"
	OrderTypeLimit          = "LMT"
)

// Order is the full order snapshot carried by a Message. DateTime is unix
// milliseconds, matching the cockpit's orderData payload.
type Order struct {
	ID            string      `json:"id" mapstructure:"id"`
	Creator       string      `json:"creator" mapstructure:"creator"`
	DateTime      int64       `json:"dateTime" mapstructure:"dateTime"`
	Owner         string      `json:"owner" mapstructure:"owner"`
	Exchange      string      `json:"exchange" mapstructure:"exchange"`
	Market        string      `json:"market" mapstructure:"market"`
	MarginEnabled bool        `json:"marginEnabled" mapstructure:"marginEnabled"`
	Type          string      `json:"type" mapstructure:"type"`
	Rate          float64     `json:"rate" mapstructure:"rate"`
	Stop          float64     `json:"stop" mapstructure:"stop"`
	TakeProfit    float64     `json:"takeProfit" mapstructure:"takeProfit"`
	Direction     Direction   `json:"direction" mapstructure:"direction"`
	Size          float64     `json:"size" mapstructure:"size"`
	Status        Status      `json:"status" mapstructure:"status"`
	SizeFilled    float64     `json:"sizeFilled" mapstructure:"sizeFilled"`
	ExitOutcome   ExitOutcome `json:"exitOutcome" mapstructure:"exitOutcome"`
}

// Message is one audit/output record. Values are copied into sinks; a
// message is never changed after it is emitted.
type Message struct {
	ID       string `json:"id"`
	From     Entity `json:"from"`
	To       Entity `json:"to"`
	Kind     Kind   `json:"messageType"`
	DateTime int64  `json:"dateTime"`
	Order    Order  `json:"order"`
}

// Time returns the message timestamp.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.DateTime).UTC()
}

// Sequence parses the message id as the engine's monotonically increasing
// sequence number. Non numeric ids yield (0, false).
func (m Message) Sequence() (int64, bool) {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(id, 64)
		if ferr != nil {
			return 0, false
		}
		n = int64(f)
	}
	return n, true
}

// Market describes where the executor trades.
type Market struct {
	Exchange string
	AssetA   string
	AssetB   string
}

// Name renders "ASSETA_ASSETB", e.g. USDT_BTC.
func (m Market) Name() string {
	return strings.ToUpper(strings.TrimSpace(m.AssetA)) + "_" + strings.ToUpper(strings.TrimSpace(m.AssetB))
}

// NewBase returns the default executor message for a tick: executor to
// assistant, kind Order, status Placed, nothing filled.
func NewBase(market Market, at time.Time) Message {
	ms := at.UnixMilli()
	return Message{
		ID:       "0",
		From:     EntitySimulationExecutor,
		To:       EntityTradingAssistant,
		Kind:     KindOrder,
		DateTime: ms,
		Order: Order{
			ID:            "0",
			Creator:       CreatorSimulationEngine,
			DateTime:      ms,
			Owner:         OwnerUser,
			Exchange:      market.Exchange,
			Market:        market.Name(),
			MarginEnabled: false,
			Type:          OrderTypeLimit,
			Status:        StatusPlaced,
		},
	}
}
