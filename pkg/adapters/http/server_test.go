package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/bpmn"
	"github.com/aretw0/constraintflow/pkg/compiler"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderDFA = `{
	"states": ["(q0,c0)", "(q1,c1)", "(q2,c2)"],
	"alphabet": ["Activity_Order", "Activity_Ship"],
	"transition_function": {
		"(q0,c0)": [{"symbol": "Activity_Order", "target": "(q1,c1)"}],
		"(q1,c1)": [{"symbol": "Activity_Ship", "target": "(q2,c2)"}]
	},
	"init_state": "(q0,c0)",
	"accept_states": ["(q2,c2)"],
	"colors": {
		"(q1,c1)": [{"Constraint_Response": "temporary_violated"}],
		"(q2,c2)": [{"Constraint_Response": "satisfied"}]
	}
}`

func newTestServer(t *testing.T, compile compiler.Func) (*Server, *constraintflow.Engine) {
	t.Helper()
	if compile == nil {
		compile = func(context.Context, []bpmn.SubModel, []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
			return automaton.Decode([]byte(orderDFA))
		}
	}
	eng := constraintflow.New(constraintflow.WithCompiler(compile))
	srv, err := NewServer(eng, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cflow_monitor_binds_total 1\n"))
	})))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, eng
}

func fixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../../bpmn/testdata/two_pools.bpmn")
	require.NoError(t, err)
	return data
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestServer_HealthInfoMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/info", nil)
	info := decode[map[string]string](t, w)
	assert.Equal(t, "cflow-http", info["app"])
	assert.Equal(t, strings.TrimSpace(constraintflow.Version), info["version"])
	assert.Equal(t, "default", info["session"])

	w = do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Contains(t, w.Body.String(), "cflow_monitor_binds_total")

	w = do(t, srv, http.MethodOptions, "/models", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Unbound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	state := decode[StateResponse](t, do(t, srv, http.MethodGet, "/state", nil))
	assert.Equal(t, domain.PhaseUnbound, state.Phase)
	assert.Empty(t, state.Available)

	w := do(t, srv, http.MethodPost, "/activities", []byte(`{"elementId":"Activity_Order"}`))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/simulation/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodGet, "/automaton", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_LoadAndDrive(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/models", fixture(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := decode[StateResponse](t, w)
	assert.Equal(t, domain.PhaseBoundIdle, state.Phase)
	assert.Equal(t, "(q0,c0)", state.Current)
	assert.Equal(t, []string{"Activity_Order"}, state.Available)

	w = do(t, srv, http.MethodPost, "/simulation/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.PhaseBoundRunning, decode[StateResponse](t, w).Phase)

	w = do(t, srv, http.MethodPost, "/activities", []byte(`{"elementId":"Activity_Ship","action":"exit"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[ActivityResponse](t, w).Advanced)

	w = do(t, srv, http.MethodPost, "/activities", []byte(`{"elementId":"Activity_Order"}`))
	resp := decode[ActivityResponse](t, w)
	assert.True(t, resp.Advanced)
	assert.Equal(t, "(q1,c1)", resp.State.Current)

	views := decode[[]ConstraintView](t, do(t, srv, http.MethodGet, "/constraints", nil))
	require.Len(t, views, 2)
	assert.Equal(t, "Constraint_Response", views[0].ID)
	assert.Equal(t, domain.StatusTemporaryViolated, views[0].Status)
	assert.Equal(t, domain.ColorTemporaryViolated, views[0].Color)
	assert.Empty(t, views[1].Status)

	w = do(t, srv, http.MethodPost, "/activities", []byte(`{"elementId":"Activity_Ship"}`))
	resp = decode[ActivityResponse](t, w)
	assert.True(t, resp.State.Accepting)

	w = do(t, srv, http.MethodPost, "/simulation/toggle", []byte(`{"active":false}`))
	state = decode[StateResponse](t, w)
	assert.Equal(t, domain.PhaseBoundIdle, state.Phase)
	assert.Equal(t, "(q2,c2)", state.Current)

	w = do(t, srv, http.MethodPost, "/simulation/reset", nil)
	state = decode[StateResponse](t, w)
	assert.Equal(t, "(q0,c0)", state.Current)
	assert.Zero(t, state.Steps)

	w = do(t, srv, http.MethodGet, "/automaton", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "transition_function")
}

func TestServer_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/models", fixture(t)).Code)

	cases := []struct {
		name, path, body string
		code             int
	}{
		{"malformed activity", "/activities", `{`, http.StatusBadRequest},
		{"missing element", "/activities", `{"action":"exit"}`, http.StatusBadRequest},
		{"unknown action", "/activities", `{"elementId":"A","action":"skip"}`, http.StatusBadRequest},
		{"malformed toggle", "/simulation/toggle", `nope`, http.StatusBadRequest},
		{"unknown control", "/simulation/rewind", ``, http.StatusNotFound},
		{"invalid model", "/models", `<process/>`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, tc.path, []byte(tc.body))
			assert.Equal(t, tc.code, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, w).Error)
		})
	}
}

func TestServer_CompileFailure(t *testing.T) {
	srv, _ := newTestServer(t, func(context.Context, []bpmn.SubModel, []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
		return nil, &compiler.CompileError{StatusCode: http.StatusUnprocessableEntity, Message: "bad model"}
	})

	w := do(t, srv, http.MethodPost, "/models", fixture(t))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Upstream)
	assert.Contains(t, resp.Error, "bad model")
}

func TestServer_SSE(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/models", fixture(t)).Code)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?topics=constraint.*", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				return strings.TrimSpace(data)
			}
		}
	}
	assert.Equal(t, "connected", readData())

	post, err := http.Post(ts.URL+"/activities", "application/json", strings.NewReader(`{"elementId":"Activity_Order"}`))
	require.NoError(t, err)
	post.Body.Close()

	var ev domain.Event
	require.NoError(t, json.Unmarshal([]byte(readData()), &ev))
	assert.Equal(t, domain.TopicStatusChanged, ev.Topic)
	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Constraint_Response", payload["constraintFlowId"])
	assert.Equal(t, "response", payload["constraintType"])
}

func TestServer_WebSocket(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/models", fixture(t)).Code)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?topics=" + domain.TopicActivityFired
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Streams().Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, eng.Bus().Publish(context.Background(), domain.Event{
		Topic:   domain.TopicTrace,
		Payload: domain.ActivityEvent{ElementID: "Activity_Order", Action: domain.ActionExit},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev domain.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, domain.TopicActivityFired, ev.Topic)

	conn.Close()
	assert.Eventually(t, func() bool { return srv.Streams().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_CloseDetachesBus(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	ch, cancel := srv.Streams().Subscribe(nil)
	defer cancel()

	require.NoError(t, srv.Close())
	require.NoError(t, eng.Bus().Publish(context.Background(), domain.Event{Topic: "custom"}))
	assert.Empty(t, ch)
}
