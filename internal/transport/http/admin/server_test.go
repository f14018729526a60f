package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloneexec/internal/agent"
	"cloneexec/internal/dedup"
	"cloneexec/internal/metrics"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) Recent(ctx context.Context, limit int) ([]ordermsg.Message, error) {
	args := m.Called(ctx, limit)
	msgs, _ := args.Get(0).([]ordermsg.Message)
	return msgs, args.Error(1)
}

type fixedStats scheduler.Stats

func (f fixedStats) Stats() scheduler.Stats { return scheduler.Stats(f) }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Tick(agent.OutcomeOK.String(), time.Now())

	srv := NewServer(ServerConfig{CloneID: "clone-1", Gatherer: reg})
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"clone-1"`)

	rec = do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cloneexec_ticks_total{outcome="ok"} 1`)
}

func TestAutopilotOverride(t *testing.T) {
	router := agent.NewRouter(nil, "clone-1", nil)
	srv := NewServer(ServerConfig{Autopilot: router})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/autopilot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"auto","autopilot":null}`, rec.Body.String())

	rec = do(t, srv.Handler(), http.MethodPut, "/api/autopilot", `{"mode":"on"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	v, set := router.Override()
	assert.True(t, set)
	assert.True(t, v)

	mode, err := router.Route(context.Background())
	require.NoError(t, err)
	assert.Equal(t, agent.ModeAutonomous, mode)

	rec = do(t, srv.Handler(), http.MethodPut, "/api/autopilot", `{"mode":"auto"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	_, set = router.Override()
	assert.False(t, set)

	rec = do(t, srv.Handler(), http.MethodPut, "/api/autopilot", `{"mode":"sometimes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCursorRestore(t *testing.T) {
	guard := dedup.NewGuard(dedup.NewMemoryStore(), "clone-1")
	require.NoError(t, guard.Commit(context.Background(), 7, 3900, 4200))
	srv := NewServer(ServerConfig{Cursor: guard})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/cursor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got cursorView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(7), got.LastSequence)
	assert.Equal(t, 3900.0, got.LastStopLoss)

	rec = do(t, srv.Handler(), http.MethodPut, "/api/cursor", `{"last_sequence":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), guard.Cursor().LastSequence)
	assert.True(t, guard.ShouldProcess(4))
	stop, tp := guard.Thresholds()
	assert.Zero(t, stop)
	assert.Zero(t, tp)

	rec = do(t, srv.Handler(), http.MethodPut, "/api/cursor", `{"last_sequence":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditLimit(t *testing.T) {
	reader := new(mockReader)
	msgs := []ordermsg.Message{{ID: "b"}, {ID: "a"}}
	reader.On("Recent", mock.Anything, 2).Return(msgs, nil).Once()
	reader.On("Recent", mock.Anything, maxAuditLimit).Return(nil, nil).Once()
	srv := NewServer(ServerConfig{Audit: reader})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/audit?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []ordermsg.Message `json:"messages"`
		Count    int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "b", body.Messages[0].ID)

	rec = do(t, srv.Handler(), http.MethodGet, "/api/audit?limit=100000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)

	rec = do(t, srv.Handler(), http.MethodGet, "/api/audit?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	reader.AssertExpectations(t)
}

func TestStatusReportsRunner(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := NewServer(ServerConfig{
		CloneID: "clone-1",
		Stats:   fixedStats{LastTick: at, LastOutcome: "retry", Ticks: 4, Retries: 2, Breaker: "half-open"},
	})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"ticks":4`)
	assert.Contains(t, body, `"last_outcome":"retry"`)
	assert.Contains(t, body, `"breaker":"half-open"`)
	assert.Contains(t, body, `"2024-03-01T12:00:00Z"`)
	assert.NotContains(t, body, `"cursor"`)
}

func TestMissingControlsReturnNotImplemented(t *testing.T) {
	srv := NewServer(ServerConfig{})
	for _, path := range []string{"/api/autopilot", "/api/cursor", "/api/audit"} {
		rec := do(t, srv.Handler(), http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}
