package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/observability"
	"github.com/collectvoice/collectvoice/internal/prompt"
	"github.com/collectvoice/collectvoice/internal/store"
	"github.com/collectvoice/collectvoice/internal/tools"
)

var (
	// ErrMissingConfig means a required upstream setting (endpoint, key,
	// deployment, API version) is absent. Fatal to the connection attempt.
	ErrMissingConfig = errors.New("missing realtime configuration")

	errNotConnected = errors.New("realtime connection not established")
)

// Config selects the upstream realtime deployment.
type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Voice      string
	Debounce   time.Duration
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		return fmt.Errorf("%w: endpoint", ErrMissingConfig)
	case strings.TrimSpace(c.APIKey) == "":
		return fmt.Errorf("%w: api key", ErrMissingConfig)
	case strings.TrimSpace(c.Deployment) == "":
		return fmt.Errorf("%w: deployment", ErrMissingConfig)
	case strings.TrimSpace(c.APIVersion) == "":
		return fmt.Errorf("%w: api version", ErrMissingConfig)
	}
	return nil
}

// Client owns one persistent realtime connection and the session state
// machine bridged over it.
type Client struct {
	cfg     Config
	log     *zap.Logger
	metrics *observability.Metrics
	session *Session

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closeOnce sync.Once
}

// NewClient wires a session for one call. Connect must be called before any
// audio flows.
func NewClient(cfg Config, customer store.CustomerRecord, callbacks Callbacks, log *zap.Logger, metrics *observability.Metrics) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{cfg: cfg, log: log, metrics: metrics}
	c.session = newSession(c, customer, callbacks, cfg.Debounce, log, metrics)
	return c
}

// Connect validates the configuration, dials the upstream endpoint, pushes
// the initial session configuration and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.cfg.validate(); err != nil {
		return err
	}

	u, err := realtimeURL(c.cfg)
	if err != nil {
		return err
	}

	headers := http.Header{}
	headers.Set("api-key", c.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, headers)
	if err != nil {
		return fmt.Errorf("dial realtime websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.send(c.sessionUpdate()); err != nil {
		c.Disconnect()
		return fmt.Errorf("push session configuration: %w", err)
	}

	go c.readLoop(conn)
	c.log.Info("realtime connected", zap.String("deployment", c.cfg.Deployment))
	return nil
}

// Disconnect tears down the upstream connection. Idempotent; never
// surfaces an error to the caller.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.connected = false
		c.mu.Unlock()
		if conn != nil {
			if err := conn.Close(); err != nil {
				c.log.Debug("realtime close", zap.Error(err))
			}
		}
	})
}

// Session exposes the state machine for the gateway's receive loop.
func (c *Client) Session() *Session { return c.session }

func (c *Client) AppendInputAudio(chunk []byte) { c.session.AppendInputAudio(chunk) }
func (c *Client) CommitAudio()                  { c.session.CommitAudio() }
func (c *Client) CreateResponse()               { c.session.CreateResponse() }
func (c *Client) Done() bool                    { return c.session.Done() }
func (c *Client) History() []Turn               { return c.session.History() }

// send implements the sender seam. One mutex serializes all socket writes:
// the read loop's tool-output sends and the gateway's audio forwarding land
// here from different goroutines.
func (c *Client) send(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode client event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return errNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop consumes the upstream event stream in arrival order. Any read
// error ends the loop and the session with it; nothing propagates to the
// host process.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.Disconnect()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("realtime read loop ended", zap.Error(err))
			}
			return
		}
		if c.metrics != nil {
			var env bareEvent
			if sonic.Unmarshal(data, &env) == nil && env.Type != "" {
				c.metrics.UpstreamEvents.WithLabelValues(env.Type).Inc()
			}
		}
		c.session.HandleEvent(data)
	}
}

func (c *Client) sessionUpdate() sessionUpdateEvent {
	voice := c.cfg.Voice
	if voice == "" {
		voice = "alloy"
	}
	return sessionUpdateEvent{
		Type: eventSessionUpdate,
		Session: SessionConfig{
			Voice:                   voice,
			Instructions:            prompt.Instructions(c.session.customer),
			Modalities:              []string{"audio", "text"},
			InputAudioFormat:        "pcm16",
			OutputAudioFormat:       "pcm16",
			InputAudioTranscription: TranscriptionConfig{Model: "whisper-1"},
			TurnDetection: TurnDetection{
				Type:              "server_vad",
				Threshold:         0.6,
				PrefixPaddingMS:   1000,
				SilenceDurationMS: 2000,
				CreateResponse:    true,
				InterruptResponse: true,
			},
			Tools:      tools.Definitions(),
			ToolChoice: "auto",
		},
	}
}

func realtimeURL(cfg Config) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("%w: endpoint scheme %q", ErrMissingConfig, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/openai/realtime"

	q := u.Query()
	q.Set("api-version", cfg.APIVersion)
	q.Set("deployment", cfg.Deployment)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
