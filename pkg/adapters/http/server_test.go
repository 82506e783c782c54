package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/flowrun/internal/runtime"
	"github.com/aretw0/flowrun/pkg/adapters/memory"
	"github.com/aretw0/flowrun/pkg/adapters/simulated"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/observability"
	"github.com/aretw0/flowrun/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refundFlow() *domain.Flow {
	return domain.NewFlow("refund", []domain.Node{
		domain.NewNode("start", domain.StartData{}),
		domain.NewNode("ask", domain.ConditionData{
			Condition: domain.Condition{Operator: domain.OperatorContains, Value: "refund"},
		}),
		domain.NewNode("refund", domain.MessageData{Content: "Processing refund"}),
		domain.NewNode("end", domain.EndData{}),
	}, []domain.Edge{
		{Source: "start", Target: "ask"},
		{Source: "ask", Target: "refund", Label: domain.LabelYes},
		{Source: "ask", Target: "end", Label: domain.LabelNo},
		{Source: "refund", Target: "end"},
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	flows := memory.NewRegistry(refundFlow())
	mgr := session.NewManager(flows, session.WithInterpreterFactory(
		session.DefaultFactory(simulated.New(simulated.WithoutDelays()),
			runtime.WithLifecycleHooks(metrics.Hooks())),
	))

	handler, err := NewHandler(mgr, flows, WithGatherer(reg))
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeSession(t *testing.T, data []byte) domain.Session {
	t.Helper()
	var s domain.Session
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestSpec_IsValid(t *testing.T) {
	doc, err := Spec()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/sessions/{sessionID}/events"))
}

func TestHealthAndInfo(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/info", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var info map[string]string
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, "flowrun-http", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])

	resp, body = do(t, http.MethodGet, srv.URL+"/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "openapi: 3.0.3")
}

func TestFlows(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/flows", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["refund"]`, string(body))

	tests := []struct {
		name     string
		path     string
		code     int
		contains string
	}{
		{"json", "/flows/refund", http.StatusOK, `"id":"refund"`},
		{"mermaid", "/flows/refund?format=mermaid", http.StatusOK, "graph TD"},
		{"unknown format", "/flows/refund?format=dot", http.StatusBadRequest, "unsupported format"},
		{"missing flow", "/flows/nope", http.StatusNotFound, "flow not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodGet, srv.URL+tt.path, "")
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/sessions", `{"flow_id":"refund","session_id":"s1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	snap := decodeSession(t, body)
	assert.Equal(t, "s1", snap.ID)
	assert.Equal(t, domain.StatusWaitingForInput, snap.Status)
	assert.Equal(t, "ask", snap.CurrentNodeID)

	resp, body = do(t, http.MethodPost, srv.URL+"/sessions/s1/input", `{"text":"I want a refund"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out inputResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Accepted)
	assert.Equal(t, domain.StatusCompleted, out.Session.Status)

	resp, body = do(t, http.MethodPost, srv.URL+"/sessions/s1/input", `{"text":"again"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Accepted, "a completed session ignores input")

	resp, body = do(t, http.MethodGet, srv.URL+"/sessions", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["s1"]`, string(body))

	resp, body = do(t, http.MethodPost, srv.URL+"/sessions/s1/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSession(t, body)
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.Empty(t, snap.Transcript)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", `{"flow_id":"refund","session_id":"live"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"missing flow id", http.MethodPost, "/sessions", `{}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/sessions", `{"flow_id":`, http.StatusBadRequest},
		{"unknown flow", http.MethodPost, "/sessions", `{"flow_id":"nope"}`, http.StatusNotFound},
		{"input without text", http.MethodPost, "/sessions/live/input", `{}`, http.StatusBadRequest},
		{"input to unknown session", http.MethodPost, "/sessions/ghost/input", `{"text":"hi"}`, http.StatusNotFound},
		{"oversized input", http.MethodPost, "/sessions/live/input", `{"text":"` + strings.Repeat("a", session.DefaultMaxInputSize+1) + `"}`, http.StatusBadRequest},
		{"reset unknown session", http.MethodPost, "/sessions/ghost/reset", "", http.StatusNotFound},
		{"delete unknown session", http.MethodDelete, "/sessions/ghost", "", http.StatusNotFound},
		{"unknown watch field", http.MethodGet, "/sessions/live/events?watch=context", "", http.StatusBadRequest},
		{"events for unknown session", http.MethodGet, "/sessions/ghost/events", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode, string(body))
		})
	}
}

// readEvents collects "event:"/"data:" pairs from an SSE stream.
func readEvents(body io.Reader, events chan<- [2]string) {
	defer close(events)
	scanner := bufio.NewScanner(body)
	var name string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			events <- [2]string{name, strings.TrimPrefix(line, "data: ")}
		}
	}
}

func openStream(t *testing.T, ctx context.Context, url string) <-chan [2]string {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan [2]string, 16)
	go readEvents(resp.Body, events)
	return events
}

func TestSubscribeEvents_StreamsDiffs(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", `{"flow_id":"refund","session_id":"s1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := openStream(t, ctx, srv.URL+"/sessions/s1/events?watch=status,transcript")

	first := <-events
	assert.Equal(t, [2]string{"ping", "connected"}, first)

	resp, _ = do(t, http.MethodPost, srv.URL+"/sessions/s1/input", `{"text":"refund please"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream ended before completion")
			require.Equal(t, "diff", ev[0])
			var diff domain.SessionDiff
			require.NoError(t, json.Unmarshal([]byte(ev[1]), &diff))
			assert.Equal(t, "s1", diff.SessionID)
			if diff.Status != nil && *diff.Status == domain.StatusCompleted {
				return
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for completion diff")
		}
	}
}

func TestSubscribeEvents_ClosedOnDelete(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", `{"flow_id":"refund","session_id":"s1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := openStream(t, ctx, srv.URL+"/sessions/s1/events")
	assert.Equal(t, "ping", (<-events)[0])

	resp, _ = do(t, http.MethodDelete, srv.URL+"/sessions/s1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var last [2]string
	for ev := range events {
		last = ev
	}
	assert.Equal(t, "closed", last[0])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", `{"flow_id":"refund","session_id":"s1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "flowrun_runs_started_total 1")
	assert.Contains(t, string(body), `flowrun_node_visits_total{type="start"} 1`)
}

func TestDiffFilter(t *testing.T) {
	status := domain.StatusCompleted
	statusDiff := &domain.SessionDiff{Status: &status}
	transcriptDiff := &domain.SessionDiff{Transcript: []domain.Message{domain.BotMessage("a", "hi")}}

	tests := []struct {
		name   string
		fields []string
		diff   *domain.SessionDiff
		keep   bool
	}{
		{"empty keeps all", nil, transcriptDiff, true},
		{"status keeps status", []string{"status"}, statusDiff, true},
		{"status drops transcript", []string{"status"}, transcriptDiff, false},
		{"transcript keeps rewrite", []string{"transcript"}, &domain.SessionDiff{Rewritten: true}, true},
		{"both", []string{" status", "transcript "}, transcriptDiff, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newDiffFilter(tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.keep, f.keep(tt.diff))
		})
	}
}
