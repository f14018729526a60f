package cockpit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloneexec/internal/ordermsg"
	"cloneexec/internal/pkg/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{Endpoint: srv.URL, Authorization: "token-1", RatePerSecond: 1000, Burst: 10})
	require.NoError(t, err)
	return c
}

func TestSignalsByCloneID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.Header.Get("authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "clone-9", gjson.GetBytes(body, "variables.cloneId").String())
		assert.Equal(t, "MAU", gjson.GetBytes(body, "variables.orderStatus").String())
		assert.Contains(t, gjson.GetBytes(body, "query").String(), "cockpit_SignalsByCloneId")
		_, _ = w.Write([]byte(`{"data":{"cockpit_SignalsByCloneId":[
			{"id":"s1","cloneId":"clone-9","orderId":5,"orderCreator":"SE","orderStatus":"MAU",
			 "orderData":{"id":5,"direction":"SELL","rate":"4000","size":0.5,"status":"MAU","dateTime":1700000000000}},
			{"id":"s2","cloneId":"clone-9","orderId":6,"orderStatus":"MAU",
			 "orderData":"{\"direction\":\"BUY\",\"rate\":3900}"}
		]}}`))
	})

	signals, err := c.SignalsByCloneID(context.Background(), "clone-9", StateApproved)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "s1", signals[0].ID)
	assert.Equal(t, StateApproved, signals[0].State)
	assert.Equal(t, "5", signals[0].Order.ID)
	assert.Equal(t, ordermsg.DirectionSell, signals[0].Order.Direction)
	assert.Equal(t, 4000.0, signals[0].Order.Rate)
	assert.Equal(t, 0.5, signals[0].Order.Size)
	assert.Equal(t, int64(1700000000000), signals[0].Order.DateTime)

	assert.Equal(t, ordermsg.DirectionBuy, signals[1].Order.Direction)
	assert.Equal(t, "6", signals[1].Order.ID)
}

func TestGraphQLErrorsBecomeAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"signal not found"}],"data":null}`))
	})
	err := c.UpdateSignal(context.Background(), "x", ordermsg.Message{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "cockpit_UpdateSignal", apiErr.Operation)
	assert.Equal(t, []string{"signal not found"}, apiErr.Messages)
	assert.False(t, errors.Is(err, fault.ErrTransientSource))
}

func TestTransportFailuresAreTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.CloneSettings(context.Background(), "clone-9")
	assert.True(t, errors.Is(err, fault.ErrTransientSource))

	c2, err := NewClient(Options{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = c2.SignalsByCloneID(context.Background(), "clone-9", StateProposed)
	assert.True(t, errors.Is(err, fault.ErrTransientSource))
}

func TestCreateSignalSendsMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		msg := gjson.GetBytes(body, "variables.message")
		assert.Equal(t, "TC", msg.Get("to").String())
		assert.Equal(t, "SIG", msg.Get("order.status").String())
		assert.Equal(t, 0.25, msg.Get("order.size").Float())
		_, _ = w.Write([]byte(`{"data":{"cockpit_CreateSignal":{"id":"42","cloneId":"clone-9","orderStatus":"SIG"}}}`))
	})
	msg := ordermsg.Message{To: ordermsg.EntityTradingCockpit, Order: ordermsg.Order{Status: ordermsg.StatusSignaled, Size: 0.25}}
	sig, err := c.CreateSignal(context.Background(), "clone-9", msg)
	require.NoError(t, err)
	assert.Equal(t, "42", sig.ID)
	assert.Equal(t, StateProposed, sig.State)
}

func TestCloneSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"cockpit_CloneSettingsByCloneId":{"id":1,"cloneId":"clone-9","autopilot":true}}}`))
	})
	s, err := c.CloneSettings(context.Background(), "clone-9")
	require.NoError(t, err)
	assert.True(t, s.Autopilot)
	assert.Equal(t, "1", s.ID)
}

func TestStateMapping(t *testing.T) {
	for _, st := range []State{StateProposed, StateApproved, StateSubmitted, StateCompleted, StateRejected} {
		assert.Equal(t, st, StateOf(string(st.Status())))
	}
	assert.Equal(t, StateUnknown, StateOf("???"))
	assert.Equal(t, []State{StateProposed, StateApproved, StateSubmitted}, OpenStates)
}
