package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cloneexec/internal/ordermsg"
	"cloneexec/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id string, status ordermsg.Status) ordermsg.Message {
	return ordermsg.Message{
		ID:       id,
		From:     ordermsg.EntitySimulationExecutor,
		To:       ordermsg.EntityTradingAssistant,
		Kind:     ordermsg.KindOrder,
		DateTime: 1700000000000,
		Order:    ordermsg.Order{ID: id, Market: "USDT_BTC", Direction: ordermsg.DirectionBuy, Status: status, Rate: 4100, Size: 1},
	}
}

type failingSink struct{}

func (failingSink) Append(context.Context, ordermsg.Message) error { return errors.New("disk full") }

type captureNotifier struct{ texts []string }

func (c *captureNotifier) SendText(_ context.Context, text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func TestMultiTriesEverySink(t *testing.T) {
	mem := NewMemory(0)
	err := Multi{failingSink{}, nil, mem}.Append(context.Background(), sample("1", ordermsg.StatusPlaced))
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, mem.Messages(), 1)
}

func TestMemoryRing(t *testing.T) {
	mem := NewMemory(2)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, mem.Append(ctx, sample(id, ordermsg.StatusPlaced)))
	}
	recent, _ := mem.Recent(ctx, 0)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].ID)
	assert.Equal(t, "2", recent[1].ID)
}

func TestFileSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "audit", "messages.jsonl"))
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Append(ctx, sample("1", ordermsg.StatusPlaced)))
	require.NoError(t, sink.Append(ctx, sample("2", ordermsg.StatusFilled)))

	all, err := sink.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, sample("1", ordermsg.StatusPlaced), all[0])

	require.NoError(t, sink.Append(ctx, sample("3", ordermsg.StatusRejected)))
	recent, err := sink.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "3", recent[0].ID)
}

func TestDBSink(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer st.Close()

	sink := NewDBSink(st, "clone-1")
	msg := sample("7", ordermsg.StatusPlaced)
	msg.Order.ExitOutcome = ordermsg.ExitStopLoss
	require.NoError(t, sink.Append(ctx, msg))

	recent, err := sink.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, msg, recent[0])
}

func TestNotifySinkFiltersStatuses(t *testing.T) {
	n := &captureNotifier{}
	sink := NewNotifySink(n, "clone-1", ordermsg.StatusPlaced)
	ctx := context.Background()
	require.NoError(t, sink.Append(ctx, sample("1", ordermsg.StatusSignaled)))
	require.NoError(t, sink.Append(ctx, sample("2", ordermsg.StatusPlaced)))
	require.Len(t, n.texts, 1)
	assert.Contains(t, n.texts[0], "clone-1 BUY placed")
	assert.Contains(t, n.texts[0], "rate:")
}
