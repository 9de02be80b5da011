package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/config"
	"github.com/collectvoice/collectvoice/internal/observability"
	"github.com/collectvoice/collectvoice/internal/realtime"
	"github.com/collectvoice/collectvoice/internal/resolver"
	"github.com/collectvoice/collectvoice/internal/store"
)

type fakeResolver struct {
	res resolver.Result
	err error
}

func (f fakeResolver) Resolve(context.Context, string, string) (resolver.Result, error) {
	return f.res, f.err
}

type fakeConn struct {
	mu      sync.Mutex
	calls   []string
	chunks  [][]byte
	done    bool
	history []realtime.Turn
}

func (f *fakeConn) AppendInputAudio(chunk []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "append")
	f.chunks = append(f.chunks, append([]byte(nil), chunk...))
}

func (f *fakeConn) CommitAudio() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "commit")
}

func (f *fakeConn) CreateResponse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
}

func (f *fakeConn) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *fakeConn) History() []realtime.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]realtime.Turn(nil), f.history...)
}

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "disconnect")
}

func (f *fakeConn) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestServer(t *testing.T, res resolver.Resolver, connect Connector) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Config{AllowAnyOrigin: true}
	srv := New(cfg, zap.NewNop(), store.New(), res, connect, observability.NewMetrics("test"))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func startCallBody() []byte {
	body, _ := json.Marshal(StartCallRequest{
		CustomerName: "Ramesh Kumar",
		SystemID:     "68240b1240ee32c9049c41b7",
		LoanID:       "C02504204479230106",
		DueDate:      "2025-01-03",
		DueAmount:    3500,
		Product:      "Two Wheeler Loan",
	})
	return body
}

func TestStartCall(t *testing.T) {
	rec := store.CustomerRecord{DebtorName: "Ramesh Kumar", Gender: "Male", DPD: "2"}
	srv, ts := newTestServer(t, fakeResolver{res: resolver.Result{Record: rec, Disposition: `{"d":"PTP"}`}}, nil)

	res, err := http.Post(ts.URL+"/start-call", "application/json", bytes.NewReader(startCallBody()))
	if err != nil {
		t.Fatalf("start-call request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var got StartCallResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.CallID == "" {
		t.Fatalf("missing call_id in response: %+v", got)
	}
	if got.Status != "COMPLETED" {
		t.Fatalf("status = %q, want COMPLETED", got.Status)
	}
	if _, err := time.Parse(time.RFC3339, got.CreatedAt); err != nil {
		t.Fatalf("created_at %q is not RFC3339: %v", got.CreatedAt, err)
	}
	if got.Initiate.LoanID != "C02504204479230106" {
		t.Fatalf("initiate payload not echoed: %+v", got.Initiate)
	}

	sess, err := srv.store.Get(got.CallID)
	if err != nil {
		t.Fatalf("stored session missing: %v", err)
	}
	if sess.Metadata != rec {
		t.Fatalf("stored metadata = %+v, want %+v", sess.Metadata, rec)
	}
	if sess.Disposition == "" {
		t.Fatalf("disposition should be stored")
	}
}

func TestStartCallResolverFailureStillSucceeds(t *testing.T) {
	srv, ts := newTestServer(t, fakeResolver{err: errors.New("backend down")}, nil)

	res, err := http.Post(ts.URL+"/start-call", "application/json", bytes.NewReader(startCallBody()))
	if err != nil {
		t.Fatalf("start-call request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolver failure must not fail call setup: status = %d", res.StatusCode)
	}

	var got StartCallResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	sess, err := srv.store.Get(got.CallID)
	if err != nil {
		t.Fatalf("stored session missing: %v", err)
	}
	if !sess.Metadata.Empty() {
		t.Fatalf("degraded call should carry an empty record, got %+v", sess.Metadata)
	}
}

func TestStartCallRejectsMissingIDs(t *testing.T) {
	_, ts := newTestServer(t, fakeResolver{}, nil)

	body, _ := json.Marshal(StartCallRequest{CustomerName: "X"})
	res, err := http.Post(ts.URL+"/start-call", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestCallHistory(t *testing.T) {
	srv, ts := newTestServer(t, fakeResolver{}, nil)
	srv.store.Create("call-1", nil)

	fc := &fakeConn{history: []realtime.Turn{
		{Role: "user", Content: "haan"},
		{Role: "assistant", Content: "namaste"},
	}}
	srv.trackLive("call-1", fc)
	defer srv.dropLive("call-1")

	res, err := http.Get(ts.URL + "/calls/call-1/history")
	if err != nil {
		t.Fatalf("history request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var got callHistoryResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.History) != 2 || got.History[0].Role != "user" || got.History[1].Content != "namaste" {
		t.Fatalf("unexpected history: %+v", got.History)
	}
}

func TestCallHistoryUnknownCall(t *testing.T) {
	_, ts := newTestServer(t, fakeResolver{}, nil)

	res, err := http.Get(ts.URL + "/calls/nope/history")
	if err != nil {
		t.Fatalf("history request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, ts := newTestServer(t, fakeResolver{}, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/perf/latency"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
