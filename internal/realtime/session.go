package realtime

import (
	"encoding/base64"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/observability"
	"github.com/collectvoice/collectvoice/internal/prompt"
	"github.com/collectvoice/collectvoice/internal/store"
	"github.com/collectvoice/collectvoice/internal/tools"
)

// sender abstracts the upstream socket so the state machine can be driven by
// a fake transport in tests. Implementations must serialize writes.
type sender interface {
	send(v any) error
}

// Turn is one finalized utterance in the chat history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Callbacks carries the two ports the event loop pushes assistant output
// through. Either may be nil.
type Callbacks struct {
	OnText  func(text string)
	OnAudio func(pcm []byte)
}

// Session is the live state of one bridged conversation. All event handling
// runs on the single upstream read loop; the gateway additionally calls the
// send methods from its own receive loop, so shared fields sit behind a
// mutex.
type Session struct {
	log       *zap.Logger
	out       sender
	customer  store.CustomerRecord
	callbacks Callbacks
	debounce  time.Duration
	metrics   *observability.Metrics

	mu         sync.Mutex
	history    []Turn
	transcript strings.Builder
	responding bool
	pending    map[string]string
	done       bool
}

func newSession(out sender, customer store.CustomerRecord, callbacks Callbacks, debounce time.Duration, log *zap.Logger, metrics *observability.Metrics) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		log:       log,
		out:       out,
		customer:  customer,
		callbacks: callbacks,
		debounce:  debounce,
		metrics:   metrics,
		pending:   make(map[string]string),
	}
}

// AppendInputAudio forwards one PCM16 chunk upstream. Failures are logged
// and swallowed; a closed connection does not tear down the session here.
func (s *Session) AppendInputAudio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	ev := audioAppendEvent{
		Type:  eventInputAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(chunk),
	}
	if err := s.out.send(ev); err != nil {
		s.log.Debug("append input audio skipped", zap.Error(err))
	}
}

// CommitAudio signals end-of-utterance to the upstream input buffer.
func (s *Session) CommitAudio() {
	if err := s.out.send(bareEvent{Type: eventInputAudioCommit}); err != nil {
		s.log.Debug("commit audio skipped", zap.Error(err))
	}
}

// CreateResponse requests a model turn. The responding flag guards against
// overlapping requests; a duplicate call while a response is in flight is a
// no-op.
func (s *Session) CreateResponse() {
	s.mu.Lock()
	if s.responding {
		s.mu.Unlock()
		return
	}
	s.responding = true
	s.mu.Unlock()

	if err := s.out.send(bareEvent{Type: eventResponseCreate}); err != nil {
		s.log.Error("create response failed", zap.Error(err))
		s.mu.Lock()
		s.responding = false
		s.mu.Unlock()
	}
}

// SendUserMessage injects a synthetic user turn and always requests a
// response afterwards.
func (s *Session) SendUserMessage(text string) {
	if text != "" {
		ev := conversationItemCreateEvent{
			Type: eventConversationItemCreate,
			Item: ConversationItem{
				Type:    "message",
				Role:    "user",
				Content: []ContentPart{{Type: "input_text", Text: text}},
			},
		}
		if err := s.out.send(ev); err != nil {
			s.log.Error("send user message failed", zap.Error(err))
		}
	}
	s.CreateResponse()
}

// Done reports whether a finalized assistant turn contained the termination
// marker.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// History returns a copy of the chat history in append order.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// HandleEvent is the single-consumer dispatch for one upstream event.
// Events must be delivered in connection arrival order.
func (s *Session) HandleEvent(raw []byte) {
	ev, err := parseServerEvent(raw)
	if err != nil {
		s.log.Warn("skipping malformed event", zap.Error(err))
		return
	}

	switch ev.Type {
	case EventError:
		s.handleError(ev)
	case EventInputTranscriptionCompleted:
		s.handleUserTranscript(ev)
	case EventResponseAudioDelta:
		s.handleAudioDelta(ev)
	case EventResponseTextDelta, EventResponseAudioTranscriptDelta:
		s.mu.Lock()
		s.transcript.WriteString(ev.Delta)
		s.mu.Unlock()
	case EventResponseDone:
		s.handleResponseDone()
	case EventResponseOutputItemAdded:
		s.handleOutputItemAdded(ev)
	case EventFunctionCallArgumentsDone:
		s.handleFunctionCallDone(ev)
	default:
		// Unrecognized event kinds are ignored.
	}
}

func (s *Session) handleError(ev ServerEvent) {
	fields := []zap.Field{zap.String("event_type", string(ev.Type))}
	if ev.Error != nil {
		fields = append(fields,
			zap.String("code", ev.Error.Code),
			zap.String("message", ev.Error.Message),
		)
	}
	s.log.Error("upstream error event", fields...)
}

func (s *Session) handleUserTranscript(ev ServerEvent) {
	text := strings.TrimSpace(ev.Transcript)
	if text == "" {
		return
	}

	s.mu.Lock()
	s.history = append(s.history, Turn{Role: "user", Content: text})
	s.mu.Unlock()
	s.log.Info("user turn", zap.String("transcript", text))

	// Let trailing transcript fragments settle before asking for a turn.
	if s.debounce > 0 {
		time.Sleep(s.debounce)
	}
	s.CreateResponse()
}

func (s *Session) handleAudioDelta(ev ServerEvent) {
	if s.callbacks.OnAudio == nil || ev.Delta == "" {
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
	if err != nil {
		s.log.Warn("skipping undecodable audio delta", zap.Error(err))
		return
	}
	s.callbacks.OnAudio(pcm)
}

func (s *Session) handleResponseDone() {
	s.mu.Lock()
	text := strings.TrimSpace(s.transcript.String())
	if text != "" {
		s.history = append(s.history, Turn{Role: "assistant", Content: text})
		s.done = strings.Contains(text, prompt.EndMarker)
		s.transcript.Reset()
	}
	s.responding = false
	s.mu.Unlock()

	if text == "" {
		return
	}
	s.log.Info("assistant turn", zap.String("content", text))
	if s.callbacks.OnText != nil {
		s.callbacks.OnText(text)
	}
}

func (s *Session) handleOutputItemAdded(ev ServerEvent) {
	if ev.Item == nil || ev.Item.Type != itemTypeFunctionCall {
		return
	}
	s.mu.Lock()
	s.pending[ev.Item.CallID] = ev.Item.Name
	s.mu.Unlock()
	s.log.Info("tool call pending",
		zap.String("tool", ev.Item.Name),
		zap.String("tool_call_id", ev.Item.CallID))
}

func (s *Session) handleFunctionCallDone(ev ServerEvent) {
	s.mu.Lock()
	name, ok := s.pending[ev.CallID]
	if ok {
		delete(s.pending, ev.CallID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	// Arguments come from the resolved customer record, not the model's
	// payload. The deployed flow only ever needs the stored DPD.
	dispatchStart := time.Now()
	result := tools.Dispatch(name, s.customerDPD())
	if s.metrics != nil {
		s.metrics.ToolCalls.WithLabelValues(name).Inc()
	}
	s.log.Info("tool call dispatched",
		zap.String("tool", name),
		zap.String("result", result))

	output, err := sonic.Marshal(result)
	if err != nil {
		s.log.Error("encode tool output failed", zap.Error(err))
		return
	}
	item := conversationItemCreateEvent{
		Type: eventConversationItemCreate,
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: ev.CallID,
			Output: string(output),
		},
	}
	if err := s.out.send(item); err != nil {
		s.log.Error("send tool output failed", zap.Error(err))
		return
	}
	// The model must be asked to continue; bypass the responding guard
	// because the tool-call response has not emitted its done event yet.
	if err := s.out.send(bareEvent{Type: eventResponseCreate}); err != nil {
		s.log.Error("create response after tool failed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveCallStage("tool_roundtrip", time.Since(dispatchStart))
	}
}

func (s *Session) customerDPD() int {
	raw := strings.TrimSpace(s.customer.DPD)
	if raw == "" {
		return 0
	}
	dpd, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return dpd
}
