package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marcus-sw/call-agent/internal/metrics"
)

// Dispatcher resolves a named tool call to a JSON-serializable result. Every
// invocation must produce a result map; error conditions are expressed inside
// the map, never as a Go error.
type Dispatcher interface {
	Dispatch(ctx context.Context, name, rawArgs string) map[string]any
}

// Config holds the provider session parameters for one client.
type Config struct {
	URL           string
	APIKey        string
	Model         string
	Voice         string
	Instructions  string
	Temperature   float64
	TurnDetection TurnDetection
	Tools         []Tool
	Dispatcher    Dispatcher

	// EventBuffer sizes the local event channel. Zero means a sane default.
	EventBuffer int
}

// DefaultTurnDetection returns the server-side VAD policy used when the
// caller does not override turn taking.
func DefaultTurnDetection() TurnDetection {
	return TurnDetection{
		Type:              "server_vad",
		Threshold:         0.5,
		PrefixPaddingMs:   300,
		SilenceDurationMs: 500,
	}
}

const defaultEventBuffer = 64

// Client owns one streaming connection to the speech session provider and
// translates between the wire protocol and the local event stream. One client
// serves exactly one call session.
type Client struct {
	cfg    Config
	events chan Event

	mu        sync.Mutex // guards conn, connected, sessionID and serializes writes
	conn      *websocket.Conn
	connected bool
	sessionID string
}

// NewClient creates a client. Connect must be called before any audio flows.
func NewClient(cfg Config) *Client {
	buf := cfg.EventBuffer
	if buf <= 0 {
		buf = defaultEventBuffer
	}
	return &Client{
		cfg:    cfg,
		events: make(chan Event, buf),
	}
}

// Events returns the ordered stream of provider events. The channel is closed
// after the transport closes; a final EventDisconnected entry precedes the
// close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// SessionID returns the provider-assigned session id, empty until
// session.created has been observed.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect dials the provider, sends the session configuration and starts the
// read loop. It resolves on transport open without waiting for the provider's
// session.created confirmation.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("realtime url: %w", err)
	}
	if c.cfg.Model != "" {
		q := u.Query()
		q.Set("model", c.cfg.Model)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("realtime connect: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("realtime connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.send(sessionUpdateEvent{
		EventID: newEventID(),
		Type:    "session.update",
		Session: SessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      c.cfg.Instructions,
			Voice:             c.cfg.Voice,
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			TurnDetection:     &c.cfg.TurnDetection,
			Tools:             c.cfg.Tools,
			ToolChoice:        "auto",
			Temperature:       c.cfg.Temperature,
		},
	})

	go c.readLoop(conn)
	return nil
}

// SendAudio appends one carrier audio frame to the provider's input buffer.
// A frame arriving after disconnect is dropped silently; the bridge may race
// teardown against a tail of in-flight frames.
func (c *Client) SendAudio(frame []byte) {
	c.send(audioAppendEvent{
		EventID: newEventID(),
		Type:    "input_audio_buffer.append",
		Audio:   base64.StdEncoding.EncodeToString(frame),
	})
}

// CommitAudio closes the current input buffer. Used for manual turn taking
// when the carrier's stop signal precedes the provider's own VAD commit.
func (c *Client) CommitAudio() {
	c.send(controlEvent{EventID: newEventID(), Type: "input_audio_buffer.commit"})
}

// CreateResponse asks the provider to generate a response for the committed
// buffer.
func (c *Client) CreateResponse() {
	c.send(controlEvent{EventID: newEventID(), Type: "response.create"})
}

// Disconnect closes the transport. Safe to call repeatedly or before Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Client) send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		slog.Debug("realtime send dropped, not connected")
		return
	}
	if err := c.conn.WriteJSON(v); err != nil {
		slog.Error("realtime send", "error", err)
		metrics.Errors.WithLabelValues("realtime", "send").Inc()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.events)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasConnected := c.connected
			c.connected = false
			c.conn = nil
			c.mu.Unlock()
			if wasConnected {
				slog.Info("realtime connection closed", "error", err)
			}
			c.events <- Event{Type: EventDisconnected}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("malformed provider message", "error", err)
			metrics.Errors.WithLabelValues("realtime", "protocol").Inc()
			continue
		}
		c.handleServerEvent(ev, data)
	}
}

func (c *Client) handleServerEvent(ev serverEvent, raw []byte) {
	metrics.RealtimeEvents.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case "session.created":
		id := ""
		if ev.Session != nil {
			id = ev.Session.ID
		}
		c.mu.Lock()
		c.sessionID = id
		c.mu.Unlock()
		slog.Info("realtime session created", "session_id", id)
		c.events <- Event{Type: EventSessionCreated, SessionID: id}

	case "response.audio.delta":
		c.events <- Event{Type: EventAudioDelta, Audio: ev.Delta}

	case "response.audio.done":
		c.events <- Event{Type: EventAudioDone}

	case "response.text.delta":
		c.events <- Event{Type: EventTextDelta, Text: ev.Delta}

	case "response.function_call_arguments.done":
		c.events <- Event{Type: EventToolCall, Tool: ev.Name, CallID: ev.CallID}
		go c.resolveToolCall(ev.Name, ev.CallID, ev.Arguments)

	case "conversation.item.created":
		c.events <- Event{Type: EventItemCreated, Raw: ev.Item}

	case "error":
		apiErr := ev.Error
		if apiErr == nil {
			apiErr = &APIError{Message: "unknown provider error"}
		}
		slog.Error("realtime provider error", "code", apiErr.Code, "message", apiErr.Message)
		metrics.Errors.WithLabelValues("realtime", "provider").Inc()
		c.events <- Event{Type: EventError, Err: apiErr}

	default:
		// Forward compatibility: republish under the wire type name.
		c.events <- Event{Type: EventType(ev.Type), Raw: raw}
	}
}

// resolveToolCall runs off the read loop so a slow handler cannot stall the
// audio pipeline. The result is wrapped as a function_call_output item; this
// is the only legal way to answer a tool call.
func (c *Client) resolveToolCall(name, callID, rawArgs string) {
	slog.Info("function call", "name", name, "call_id", callID)

	var result map[string]any
	if c.cfg.Dispatcher == nil {
		result = map[string]any{"error": "Unknown function"}
	} else {
		result = c.cfg.Dispatcher.Dispatch(context.Background(), name, rawArgs)
	}

	out, err := json.Marshal(result)
	if err != nil {
		out = []byte(`{"error":"unserializable tool result"}`)
	}

	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		slog.Info("discarding tool result after disconnect", "name", name, "call_id", callID)
		return
	}

	c.send(itemCreateEvent{
		EventID: newEventID(),
		Type:    "conversation.item.create",
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: string(out),
		},
	})
}

func newEventID() string {
	return uuid.NewString()
}
