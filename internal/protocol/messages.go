package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Kind identifies websocket payload variants on the browser leg.
type Kind string

const (
	// KindAudioData carries a base64-encoded chunk of PCM16 audio. It flows
	// both directions: microphone capture inbound, assistant speech outbound.
	KindAudioData Kind = "AudioData"
	// KindStopAudio is a bare control frame. Inbound it closes the current
	// user utterance; outbound it tells the client to flush its playback
	// buffer before the socket closes.
	KindStopAudio Kind = "StopAudio"
	// KindText carries a text payload, used for assistant text deltas.
	KindText Kind = "Text"
)

var ErrUnsupportedKind = errors.New("unsupported frame kind")

type Frame struct {
	Kind Kind   `json:"kind"`
	Data string `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

// ParseClientFrame decodes and validates a frame received from the browser.
func ParseClientFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("invalid frame: %w", err)
	}

	switch f.Kind {
	case KindAudioData:
		if f.Data == "" {
			return Frame{}, errors.New("invalid AudioData frame: empty data")
		}
		return f, nil
	case KindStopAudio:
		return f, nil
	case KindText:
		if f.Text == "" {
			return Frame{}, errors.New("invalid Text frame: empty text")
		}
		return f, nil
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, f.Kind)
	}
}

// AudioFrame marshals an outbound AudioData frame around base64 PCM16 audio.
func AudioFrame(b64 string) ([]byte, error) {
	return sonic.Marshal(Frame{Kind: KindAudioData, Data: b64})
}

// StopFrame marshals the outbound StopAudio control frame.
func StopFrame() ([]byte, error) {
	return sonic.Marshal(Frame{Kind: KindStopAudio})
}

// TextFrame marshals an outbound Text frame.
func TextFrame(text string) ([]byte, error) {
	return sonic.Marshal(Frame{Kind: KindText, Text: text})
}
