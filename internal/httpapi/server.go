package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/config"
	"github.com/collectvoice/collectvoice/internal/observability"
	"github.com/collectvoice/collectvoice/internal/realtime"
	"github.com/collectvoice/collectvoice/internal/resolver"
	"github.com/collectvoice/collectvoice/internal/store"
)

// RealtimeConn is the per-call upstream handle the gateway drives. Satisfied
// by *realtime.Client; tests substitute a fake.
type RealtimeConn interface {
	AppendInputAudio(chunk []byte)
	CommitAudio()
	CreateResponse()
	Done() bool
	History() []realtime.Turn
	Disconnect()
}

// Connector builds and connects the upstream client for one call.
type Connector func(ctx context.Context, rec store.CustomerRecord, cb realtime.Callbacks, log *zap.Logger) (RealtimeConn, error)

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	store    *store.Store
	resolver resolver.Resolver
	connect  Connector
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	liveMu sync.RWMutex
	live   map[string]RealtimeConn
}

func New(cfg config.Config, log *zap.Logger, st *store.Store, res resolver.Resolver, connect Connector, metrics *observability.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		store:    st,
		resolver: res,
		connect:  connect,
		metrics:  metrics,
		live:     make(map[string]RealtimeConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// The chat widget is served cross-origin, so the default
				// deployment allows any origin.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/start-call", s.handleStartCall)
	r.Get("/wss/{call_id}", s.handleCallWS)
	r.Get("/calls/{call_id}/history", s.handleCallHistory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mock_mode": s.cfg.MockMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"calls":  s.store.Count(),
	})
}

func (s *Server) trackLive(callID string, conn RealtimeConn) {
	s.liveMu.Lock()
	s.live[callID] = conn
	s.liveMu.Unlock()
	s.metrics.ActiveCalls.Set(float64(s.liveCount()))
}

func (s *Server) dropLive(callID string) {
	s.liveMu.Lock()
	delete(s.live, callID)
	s.liveMu.Unlock()
	s.metrics.ActiveCalls.Set(float64(s.liveCount()))
}

func (s *Server) liveConn(callID string) (RealtimeConn, bool) {
	s.liveMu.RLock()
	defer s.liveMu.RUnlock()
	conn, ok := s.live[callID]
	return conn, ok
}

func (s *Server) liveCount() int {
	s.liveMu.RLock()
	defer s.liveMu.RUnlock()
	return len(s.live)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
