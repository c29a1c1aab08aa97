package livehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradewatch/internal/inference"
	"tradewatch/internal/state"
	"tradewatch/internal/tradesetup"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTrigger struct {
	mock.Mock
}

func (m *MockTrigger) TriggerManualInference(ctx context.Context) inference.Outcome {
	args := m.Called(ctx)
	return args.Get(0).(inference.Outcome)
}

func (m *MockTrigger) Cooldown() time.Duration {
	return 180 * time.Second
}

type stubMetrics struct{}

func (stubMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
}

func newTestServer(t *testing.T, trigger ManualTrigger) (*Server, *state.State) {
	t.Helper()
	st := state.New(tradesetup.NewRegistry())
	srv, err := NewServer(ServerConfig{
		Deps:           Deps{State: st, Trigger: trigger, Metrics: stubMetrics{}},
		StreamInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	return srv, st
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func sampleSetup(id string) tradesetup.TradeSetup {
	return tradesetup.TradeSetup{
		ID:        id,
		Symbol:    "@ES",
		Direction: tradesetup.Long,
		Entry:     tradesetup.EntryRule{Type: "limit", Price: 5000, Condition: "pullback"},
		StopLoss:  tradesetup.StopLossRule{Price: 4990},
		Targets:   []tradesetup.TargetRule{{Price: 5020}},
		RulesText: "buy the dip",
	}
}

func TestNewServerRequiresState(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestDashboardIsServed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tradewatch")

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/dashboard/missing.js", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusReflectsState(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.SetRunning(true)
	st.SetLastPrice(5012.25)
	st.Setups().AddSetups([]tradesetup.TradeSetup{sampleSetup("long_1")})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(120), body["interval"])
	assert.Equal(t, 5012.25, body["last_price"])
	assert.Equal(t, "Daemon initializing...", body["last_output"])
	setups, ok := body["active_setups"].([]any)
	require.True(t, ok)
	assert.Len(t, setups, 1)
}

func TestTriggerInference(t *testing.T) {
	cases := []struct {
		name    string
		outcome inference.Outcome
		code    int
		status  string
	}{
		{"started", inference.OutcomeStarted, http.StatusAccepted, "running"},
		{"already running", inference.OutcomeAlreadyRunning, http.StatusConflict, "already_running"},
		{"cooldown", inference.OutcomeCoolingDown, http.StatusTooManyRequests, "cooldown"},
		{"canceled", inference.OutcomeCanceled, http.StatusServiceUnavailable, "canceled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trigger := new(MockTrigger)
			trigger.On("TriggerManualInference", mock.Anything).Return(tc.outcome).Once()
			srv, _ := newTestServer(t, trigger)

			rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/inference", "")
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.status, decode(t, rec)["status"])
			trigger.AssertExpectations(t)
		})
	}
}

func TestTriggerInferenceWithoutEngine(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/inference", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInferenceSnapshot(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.Equal(t, state.Started, st.TryStartInference(state.StartRequest{ID: "run-1", Reason: "Scheduled"}))

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/inference", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "RUNNING", body["status"])
	assert.Equal(t, "run-1", body["id"])
}

func TestAutoInference(t *testing.T) {
	srv, st := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/auto-inference", "")
	assert.Equal(t, float64(0), decode(t, rec)["interval"])

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/auto-inference", `{"interval":900}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 900, st.AutoInferenceInterval())

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/auto-inference", `{"interval":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/auto-inference", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 900, st.AutoInferenceInterval())
}

func TestControl(t *testing.T) {
	srv, st := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/control", `{"action":"start"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, st.IsRunning())

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/control", `{"action":"STOP"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, st.IsRunning())

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/control", `{"action":"reboot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlAcceptsForm(t *testing.T) {
	srv, st := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/control", strings.NewReader("action=start"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, st.IsRunning())
}

func TestConfigInterval(t *testing.T) {
	srv, st := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/config", `{"interval":60}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, st.Interval())

	for _, body := range []string{`{"interval":0}`, `{"interval":-5}`, `{"interval":"abc"}`} {
		rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/config", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 60, st.Interval())
}

func TestSetupsAndCancel(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.Setups().AddSetups([]tradesetup.TradeSetup{sampleSetup("long_1")})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/setups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	setups, ok := decode(t, rec)["setups"].([]any)
	require.True(t, ok)
	assert.Len(t, setups, 1)

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/setups/long_1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/setups/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/setups/long_1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "NEW", body["from"])
	assert.Equal(t, "CANCELED", body["to"])

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/setups/long_1/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doRequest(t, srv.Handler(), http.MethodPost, "/api/setups/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamPushesSnapshots(t *testing.T) {
	srv, st := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first state.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.False(t, first.Running)

	st.SetRunning(true)
	require.Eventually(t, func() bool {
		var snap state.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			return false
		}
		return snap.Running
	}, 2*time.Second, 10*time.Millisecond)

	srv.handler.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
			break
		}
	}
}
