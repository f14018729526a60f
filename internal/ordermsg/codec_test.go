package ordermsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestUnpackEngineRow(t *testing.T) {
	raw := `[136,"EN","EX","ORD",1553941714826,[136,"SE",1553941714826,"U","binance","USDT_BTC",0,"LMT",4000,4100,3900,"SELL",1,"SIG",0,""]]`

	msg, err := Unpack(gjson.Parse(raw))
	require.NoError(t, err)

	seq, ok := msg.Sequence()
	assert.True(t, ok)
	assert.Equal(t, int64(136), seq)
	assert.Equal(t, EntitySimulationEngine, msg.From)
	assert.Equal(t, KindOrder, msg.Kind)
	assert.Equal(t, DirectionSell, msg.Order.Direction)
	assert.Equal(t, 4100.0, msg.Order.Stop)
	assert.Equal(t, 3900.0, msg.Order.TakeProfit)
	assert.Equal(t, StatusSignaled, msg.Order.Status)
	assert.False(t, msg.Order.MarginEnabled)
}

func TestUnpackRejectsShortPayloads(t *testing.T) {
	_, err := Unpack(gjson.Parse(`[1,"EN","EX","ORD",0]`))
	assert.Error(t, err)

	_, err = Unpack(gjson.Parse(`[1,"EN","EX","ORD",0,[0,"",0]]`))
	assert.Error(t, err)

	_, err = UnpackBytes([]byte(`{"id":1}`))
	assert.Error(t, err)
}

func TestPackKeepsPositionalLayout(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	msg := NewBase(Market{Exchange: "paper", AssetA: "usdt", AssetB: "btc"}, at)
	msg.ID = "42"
	msg.Order.ID = "pos-1"
	msg.Order.Direction = DirectionBuy
	msg.Order.ExitOutcome = ExitStopLoss

	data, err := Pack(msg)
	require.NoError(t, err)

	parsed := gjson.ParseBytes(data)
	assert.Equal(t, int64(42), parsed.Get("0").Int())
	assert.Equal(t, "pos-1", parsed.Get("5.0").String())
	assert.Equal(t, "USDT_BTC", parsed.Get("5.5").String())
	assert.Equal(t, "BUY", parsed.Get("5.11").String())
	assert.Equal(t, "SL", parsed.Get("5.15").String())

	back, err := UnpackBytes(data)
	require.NoError(t, err)
	assert.Equal(t, msg, back)
}

func TestSequenceNonNumeric(t *testing.T) {
	_, ok := Message{ID: "abc"}.Sequence()
	assert.False(t, ok)
	_, ok = Message{}.Sequence()
	assert.False(t, ok)
}
