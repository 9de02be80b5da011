package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collectvoice/collectvoice/internal/store"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		APIKey:     "key",
		Deployment: "gpt-4o-realtime-preview",
		APIVersion: "2025-04-01-preview",
	}
}

func TestConnectRejectsMissingConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing endpoint", Config{APIKey: "k", Deployment: "d", APIVersion: "v"}},
		{"missing api key", Config{Endpoint: "https://x", Deployment: "d", APIVersion: "v"}},
		{"missing deployment", Config{Endpoint: "https://x", APIKey: "k", APIVersion: "v"}},
		{"missing api version", Config{Endpoint: "https://x", APIKey: "k", Deployment: "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg, store.CustomerRecord{}, Callbacks{}, nil, nil)
			err := c.Connect(context.Background())
			if !errors.Is(err, ErrMissingConfig) {
				t.Fatalf("Connect() error = %v, want ErrMissingConfig", err)
			}
		})
	}
}

func TestRealtimeURL(t *testing.T) {
	u, err := realtimeURL(testConfig("https://myres.openai.azure.com/"))
	if err != nil {
		t.Fatalf("realtimeURL() error = %v", err)
	}
	if !strings.HasPrefix(u, "wss://myres.openai.azure.com/openai/realtime?") {
		t.Fatalf("unexpected url: %s", u)
	}
	if !strings.Contains(u, "api-version=2025-04-01-preview") || !strings.Contains(u, "deployment=gpt-4o-realtime-preview") {
		t.Fatalf("url missing query parameters: %s", u)
	}
}

func TestConnectPushesSessionConfiguration(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotHeader := make(chan string, 1)
	gotUpdate := make(chan map[string]any, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader <- r.Header.Get("api-key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var update map[string]any
		if err := json.Unmarshal(data, &update); err != nil {
			return
		}
		gotUpdate <- update
	}))
	defer srv.Close()

	cfg := testConfig(strings.Replace(srv.URL, "http://", "ws://", 1))
	c := NewClient(cfg, store.CustomerRecord{DebtorName: "Ramesh Kumar", Gender: "Male"}, Callbacks{}, nil, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	select {
	case key := <-gotHeader:
		if key != "key" {
			t.Fatalf("api-key header = %q, want %q", key, "key")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for handshake")
	}

	select {
	case update := <-gotUpdate:
		if update["type"] != "session.update" {
			t.Fatalf("first client event type = %v, want session.update", update["type"])
		}
		sess, ok := update["session"].(map[string]any)
		if !ok {
			t.Fatalf("missing session payload: %v", update)
		}
		if sess["voice"] != "alloy" {
			t.Fatalf("voice = %v, want alloy", sess["voice"])
		}
		instructions, _ := sess["instructions"].(string)
		if !strings.Contains(instructions, "Mr. Ramesh Kumar") {
			t.Fatalf("instructions missing customer personalization")
		}
		tools, ok := sess["tools"].([]any)
		if !ok || len(tools) != 1 {
			t.Fatalf("tools = %v, want one definition", sess["tools"])
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for session.update")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := testConfig(strings.Replace(srv.URL, "http://", "ws://", 1))
	c := NewClient(cfg, store.CustomerRecord{}, Callbacks{}, nil, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c.Disconnect()
	c.Disconnect()

	if err := c.send(bareEvent{Type: eventResponseCreate}); !errors.Is(err, errNotConnected) {
		t.Fatalf("send after disconnect error = %v, want errNotConnected", err)
	}
}
