package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/pkg/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL + "/api", Token: "secret"})
	require.NoError(t, err)
	return c
}

func TestPutPositionSendsOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/positions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req exchange.PutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, exchange.SideBuy, req.Side)
		_, _ = w.Write([]byte(`{"id":77,"side":"BUY","rate":"4000","size_base":1,"size_quote":4000,"status":"open","opened_at":1700000000000}`))
	})

	pos, err := c.PutPosition(context.Background(), exchange.PutRequest{Side: exchange.SideBuy, Rate: 4000, SizeQuote: 4000, SizeBase: 1})
	require.NoError(t, err)
	assert.Equal(t, "77", pos.ID)
	assert.Equal(t, exchange.SideBuy, pos.Side)
	assert.Equal(t, 4000.0, pos.Rate)
	assert.False(t, pos.Executed())
	assert.Equal(t, int64(1700000000000), pos.OpenedAt.UnixMilli())
}

func TestRefusedOrderIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient funds", http.StatusUnprocessableEntity)
	})
	_, err := c.PutPosition(context.Background(), exchange.PutRequest{Side: exchange.SideSell, Rate: 1, SizeBase: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrExecutionRejected))
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestReadFailuresAreTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.AvailableBalance(context.Background())
	assert.True(t, errors.Is(err, fault.ErrTransientSource))

	_, err = c.Positions(context.Background())
	assert.True(t, errors.Is(err, fault.ErrTransientSource))
}

func TestPositionsAcceptsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/positions":
			_, _ = w.Write([]byte(`{"positions":[{"id":"a","side":"sell","status":"executed"}]}`))
		case "/api/rate":
			_, _ = w.Write([]byte(`{"rate":"4100.5"}`))
		case "/api/balance":
			_, _ = w.Write([]byte(`{"asset_a":"4000","asset_b":0}`))
		}
	})
	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Executed())

	rate, err := c.MarketRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4100.5, rate)

	bal, err := c.AvailableBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exchange.Balance{AssetA: 4000}, bal)
}

func TestMovePosition(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/positions/p-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	moved, err := c.MovePosition(context.Background(), exchange.Position{ID: "p-1", Rate: 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, "p-1", moved.ID)
	assert.Equal(t, 2.0, moved.Rate)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Options{})
	assert.True(t, errors.Is(err, fault.ErrConfiguration))
}
