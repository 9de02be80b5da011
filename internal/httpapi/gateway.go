package httpapi

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/protocol"
	"github.com/collectvoice/collectvoice/internal/realtime"
)

// handleCallWS bridges one browser WebSocket to one upstream realtime
// session. The upstream event loop and this receive loop run concurrently;
// all client-socket writes funnel through a single writer goroutine draining
// the outbound queue.
func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "call_id")
	sess, err := s.store.Get(callID)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := s.log.With(zap.String("call_id", callID))
	log.Info("client websocket accepted")
	s.metrics.CallEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan []byte, 256)
	enqueue := func(frame []byte, kind string) {
		select {
		case outbound <- frame:
			s.metrics.WSMessages.WithLabelValues("outbound", kind).Inc()
		default:
			// Keep client writes single-threaded; drop when saturated.
			s.metrics.WSMessages.WithLabelValues("outbound_dropped", kind).Inc()
		}
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	callStart := time.Now()
	var firstAudio sync.Once

	callbacks := realtime.Callbacks{
		OnText: func(text string) {
			frame, err := protocol.TextFrame(text)
			if err != nil {
				log.Error("encode text frame", zap.Error(err))
				return
			}
			enqueue(frame, string(protocol.KindText))
		},
		OnAudio: func(pcm []byte) {
			firstAudio.Do(func() {
				s.metrics.ObserveFirstAudioLatency(time.Since(callStart))
			})
			frame, err := protocol.AudioFrame(base64.StdEncoding.EncodeToString(pcm))
			if err != nil {
				log.Error("encode audio frame", zap.Error(err))
				return
			}
			enqueue(frame, string(protocol.KindAudioData))
		},
	}

	connectStart := time.Now()
	rt, err := s.connect(ctx, sess.Metadata, callbacks, log)
	if err != nil {
		log.Error("upstream connect failed", zap.Error(err))
		s.metrics.CallEvents.WithLabelValues("upstream_connect_failed").Inc()
		cancel()
		<-writerDone
		s.closeWithNotice(conn, "The call could not be connected.")
		return
	}
	s.metrics.ObserveCallStage("upstream_connect", time.Since(connectStart))
	s.trackLive(callID, rt)

	// Cleanup always tears down the upstream leg; its errors never surface.
	defer func() {
		s.dropLive(callID)
		rt.Disconnect()
		s.metrics.CallEvents.WithLabelValues("ws_disconnected").Inc()
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Client hung up; exit quietly.
			log.Info("client websocket closed", zap.Error(err))
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		frame, err := protocol.ParseClientFrame(data)
		if err != nil {
			log.Warn("skipping malformed client frame", zap.Error(err))
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", string(frame.Kind)).Inc()

		switch frame.Kind {
		case protocol.KindAudioData:
			chunk, err := base64.StdEncoding.DecodeString(frame.Data)
			if err != nil {
				log.Warn("skipping undecodable audio frame", zap.Error(err))
				continue
			}
			rt.AppendInputAudio(chunk)
		case protocol.KindStopAudio:
			rt.CommitAudio()
			rt.CreateResponse()
		case protocol.KindText:
			// The browser leg never sends text in this deployment.
		}

		if rt.Done() {
			log.Info("conversation done, closing call")
			s.metrics.CallEvents.WithLabelValues("completed").Inc()
			s.metrics.ObserveCallIndicator("end_marker")
			s.finishCall(conn, rt, cancel, writerDone)
			return
		}
	}
}

// finishCall stops the upstream leg and the writer, then sends the final
// StopAudio frame so the client flushes playback before the close.
func (s *Server) finishCall(conn *websocket.Conn, rt RealtimeConn, cancel context.CancelFunc, writerDone <-chan struct{}) {
	rt.Disconnect()
	cancel()
	<-writerDone

	if frame, err := protocol.StopFrame(); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		s.metrics.WSMessages.WithLabelValues("outbound", string(protocol.KindStopAudio)).Inc()
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "conversation complete"),
		time.Now().Add(time.Second))
}

// closeWithNotice sends a final human-readable message before closing a
// socket whose call could not proceed. Only safe once the writer goroutine
// has stopped.
func (s *Server) closeWithNotice(conn *websocket.Conn, notice string) {
	if frame, err := protocol.TextFrame(notice); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "call setup failed"),
		time.Now().Add(time.Second))
}
