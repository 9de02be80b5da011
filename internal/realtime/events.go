package realtime

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/collectvoice/collectvoice/internal/tools"
)

// EventType identifies the upstream realtime API events this service
// consumes. Anything outside this set dispatches to a no-op branch.
type EventType string

const (
	EventError                        EventType = "error"
	EventInputTranscriptionCompleted  EventType = "conversation.item.input_audio_transcription.completed"
	EventResponseAudioDelta           EventType = "response.audio.delta"
	EventResponseTextDelta            EventType = "response.text.delta"
	EventResponseAudioTranscriptDelta EventType = "response.audio_transcript.delta"
	EventResponseDone                 EventType = "response.done"
	EventResponseOutputItemAdded      EventType = "response.output_item.added"
	EventFunctionCallArgumentsDone    EventType = "response.function_call_arguments.done"
)

// Client event types sent upstream.
const (
	eventSessionUpdate          = "session.update"
	eventInputAudioAppend       = "input_audio_buffer.append"
	eventInputAudioCommit       = "input_audio_buffer.commit"
	eventResponseCreate         = "response.create"
	eventConversationItemCreate = "conversation.item.create"
)

const itemTypeFunctionCall = "function_call"

// ServerEvent is the decoded shape of one upstream event. Only the fields
// the dispatch loop reads are mapped; everything else is dropped at decode.
type ServerEvent struct {
	Type       EventType    `json:"type"`
	Delta      string       `json:"delta"`
	Transcript string       `json:"transcript"`
	CallID     string       `json:"call_id"`
	Arguments  string       `json:"arguments"`
	Item       *ServerItem  `json:"item"`
	Error      *ServerError `json:"error"`
}

type ServerItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Name   string `json:"name"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseServerEvent(raw []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := sonic.Unmarshal(raw, &ev); err != nil {
		return ServerEvent{}, fmt.Errorf("decode server event: %w", err)
	}
	return ev, nil
}

// SessionConfig is the payload of the session.update sent right after the
// upstream handshake.
type SessionConfig struct {
	Voice                   string              `json:"voice"`
	Instructions            string              `json:"instructions"`
	Modalities              []string            `json:"modalities"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription TranscriptionConfig `json:"input_audio_transcription"`
	TurnDetection           TurnDetection       `json:"turn_detection"`
	Tools                   []tools.Definition  `json:"tools"`
	ToolChoice              string              `json:"tool_choice"`
}

type TranscriptionConfig struct {
	Model string `json:"model"`
}

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
	InterruptResponse bool    `json:"interrupt_response"`
}

type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type bareEvent struct {
	Type string `json:"type"`
}

type conversationItemCreateEvent struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

// ConversationItem covers both synthetic user messages and tool outputs.
type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
