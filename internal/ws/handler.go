package ws

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/marcus-sw/call-agent/internal/audio"
	"github.com/marcus-sw/call-agent/internal/bridge"
	"github.com/marcus-sw/call-agent/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SessionFactory builds a call session wired to the given outward event
// callback. The handler owns when sessions start and end; the factory owns
// what is inside them.
type SessionFactory func(callSID, streamSID string, onEvent bridge.EventCallback) *bridge.Session

// HandlerConfig holds the shared collaborators for all media streams.
type HandlerConfig struct {
	Registry      *bridge.Registry
	NewSession    SessionFactory
	MaxConcurrent int
}

// Handler serves the carrier's media-stream WebSocket with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a media-stream handler with a concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// streamMessage is one tagged message on the carrier's duplex channel.
type streamMessage struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *startPayload `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	CallSID   string `json:"callSid"`
	StreamSID string `json:"streamSid"`
}

type mediaPayload struct {
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ServeHTTP upgrades the connection and runs the media stream until the
// carrier hangs up. Returns 503 at max concurrent call capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.CallsActive.Inc()
	metrics.CallsTotal.Inc()
	defer metrics.CallsActive.Dec()

	h.runStream(r, conn)
}

func (h *Handler) runStream(r *http.Request, conn *websocket.Conn) {
	send := newMediaSender(conn)

	var (
		session *bridge.Session
		callSID string
	)
	defer func() {
		// Transport close doubles as a stop signal; End is idempotent.
		if session != nil {
			session.End()
			h.cfg.Registry.Remove(callSID)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("media stream closed", "call_sid", callSID, "error", err)
			return
		}

		var msg streamMessage
		if err = json.Unmarshal(data, &msg); err != nil {
			slog.Warn("malformed stream message", "error", err)
			metrics.Errors.WithLabelValues("ws", "protocol").Inc()
			continue
		}

		switch msg.Event {
		case "connected", "mark":
			slog.Debug("stream event", "event", msg.Event)

		case "start":
			if msg.Start == nil {
				slog.Warn("start without payload")
				continue
			}
			if session != nil {
				slog.Warn("duplicate start on stream", "call_sid", callSID)
				continue
			}
			callSID = msg.Start.CallSID
			session = h.cfg.NewSession(callSID, msg.Start.StreamSID, send)
			if err = h.cfg.Registry.Add(callSID, session); err != nil {
				slog.Warn("rejecting start", "call_sid", callSID, "error", err)
				session = nil
				continue
			}
			slog.Info("media stream started", "call_sid", callSID, "stream_sid", msg.Start.StreamSID)
			if err = session.Start(r.Context()); err != nil {
				slog.Error("session start failed", "call_sid", callSID, "error", err)
				metrics.Errors.WithLabelValues("ws", "session_start").Inc()
				h.cfg.Registry.Remove(callSID)
				session = nil
				return
			}

		case "media":
			// Media before start has no session to land in; dropped, not a fault.
			if session == nil || msg.Media == nil {
				slog.Debug("media frame with no active session")
				continue
			}
			frame, decErr := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if decErr != nil {
				slog.Warn("bad media payload", "call_sid", callSID, "error", decErr)
				metrics.Errors.WithLabelValues("ws", "media_decode").Inc()
				continue
			}
			metrics.AudioFramesIn.Inc()
			meterInputLevel(frame)
			session.ProcessAudioInput(frame)

		case "stop":
			slog.Info("media stream stopped", "call_sid", callSID)
			if session != nil {
				session.End()
				h.cfg.Registry.Remove(callSID)
				session = nil
			}

		default:
			slog.Debug("unrecognized stream event", "event", msg.Event)
		}
	}
}

// meterInputLevel records the RMS level of an inbound μ-law frame.
func meterInputLevel(frame []byte) {
	samples, err := audio.Decode(frame, audio.CodecG711Ulaw)
	if err != nil {
		return
	}
	metrics.InputLevelDB.Observe(audio.LevelDB(samples))
}

// mediaMessage is the outbound audio shape the carrier expects.
type mediaMessage struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

// newMediaSender wraps the connection in a mutex-guarded outward event
// callback; the bridge is the only writer toward the carrier socket.
func newMediaSender(conn *websocket.Conn) bridge.EventCallback {
	var mu sync.Mutex
	return func(ev bridge.Event) {
		switch ev.Type {
		case "audio.output":
			mu.Lock()
			defer mu.Unlock()
			msg := mediaMessage{
				Event:     "media",
				StreamSID: ev.StreamSID,
				Media:     mediaPayload{Payload: ev.Payload},
			}
			if err := conn.WriteJSON(msg); err != nil {
				slog.Error("write media", "error", err)
				metrics.Errors.WithLabelValues("ws", "write").Inc()
			}

		case "transcript.update":
			slog.Debug("transcript", "stream_sid", ev.StreamSID, "text", ev.Text)

		case "ready":
			slog.Info("call ready", "stream_sid", ev.StreamSID, "session_id", ev.SessionID)

		case "error":
			slog.Error("call error", "stream_sid", ev.StreamSID, "error", ev.Err)

		case "call.ended":
			slog.Info("call ended event", "stream_sid", ev.StreamSID)
		}
	}
}
