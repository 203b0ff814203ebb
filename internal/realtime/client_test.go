package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-process stand-in for the speech session provider.
type fakeProvider struct {
	srv      *httptest.Server
	conns    chan *websocket.Conn
	received chan map[string]any

	mu      sync.Mutex
	headers http.Header
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{
		conns:    make(chan *websocket.Conn, 1),
		received: make(chan map[string]any, 64),
	}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.headers = r.Header.Clone()
		f.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			f.received <- msg
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProvider) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeProvider) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for provider connection")
		return nil
	}
}

func (f *fakeProvider) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m := <-f.received:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client message")
		return nil
	}
}

func (f *fakeProvider) authHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers.Get("Authorization")
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

// stubDispatcher returns a canned result and records invocations.
type stubDispatcher struct {
	mu     sync.Mutex
	calls  []string
	result map[string]any
}

func (d *stubDispatcher) Dispatch(_ context.Context, name, rawArgs string) map[string]any {
	d.mu.Lock()
	d.calls = append(d.calls, name)
	d.mu.Unlock()
	if d.result != nil {
		return d.result
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return map[string]any{"error": err.Error()}
	}
	if name != "schedule_appointment" {
		return map[string]any{"error": "Unknown function"}
	}
	customer, _ := args["customer_name"].(string)
	return map[string]any{
		"success":        true,
		"appointment_id": "apt_123",
		"message":        "Appointment for " + customer + " has been scheduled.",
	}
}

func testClient(t *testing.T, f *fakeProvider, d Dispatcher) *Client {
	t.Helper()
	c := NewClient(Config{
		URL:           f.url(),
		APIKey:        "test-key",
		Model:         "gpt-4o-realtime-preview",
		Voice:         "alloy",
		Instructions:  "be brief",
		Temperature:   0.8,
		TurnDetection: DefaultTurnDetection(),
		Tools: []Tool{{
			Type: "function",
			Function: ToolFunction{
				Name:       "schedule_appointment",
				Parameters: ToolParameters{Type: "object"},
			},
		}},
		Dispatcher: d,
	})
	t.Cleanup(c.Disconnect)
	return c
}

func TestConnectSendsSessionConfig(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)

	require.NoError(t, c.Connect(context.Background()))

	msg := f.next(t)
	assert.Equal(t, "session.update", msg["type"])
	assert.NotEmpty(t, msg["event_id"])
	assert.Equal(t, "Bearer test-key", f.authHeader())

	session, ok := msg["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "be brief", session["instructions"])
	assert.Equal(t, "alloy", session["voice"])
	assert.Equal(t, "g711_ulaw", session["input_audio_format"])
	assert.Equal(t, "g711_ulaw", session["output_audio_format"])
	assert.Equal(t, "auto", session["tool_choice"])

	td, ok := session["turn_detection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "server_vad", td["type"])

	toolList, ok := session["tools"].([]any)
	require.True(t, ok)
	require.Len(t, toolList, 1)
}

func TestConnectFailure(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1", APIKey: "k"})
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "realtime connect")
}

func TestSendAudioOrdering(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	f.next(t) // session.update

	frames := [][]byte{[]byte("A"), []byte("B"), []byte("C")}
	for _, fr := range frames {
		c.SendAudio(fr)
	}

	for _, want := range frames {
		msg := f.next(t)
		assert.Equal(t, "input_audio_buffer.append", msg["type"])
		assert.Equal(t, base64.StdEncoding.EncodeToString(want), msg["audio"])
	}
}

func TestSendAudioBeforeConnectIsNoop(t *testing.T) {
	c := NewClient(Config{URL: "ws://unused", APIKey: "k"})
	assert.NotPanics(t, func() {
		c.SendAudio([]byte("late frame"))
		c.CommitAudio()
		c.CreateResponse()
	})
}

func TestOutboundEventIDsAreUnique(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))

	c.SendAudio([]byte("x"))
	c.SendAudio([]byte("y"))
	c.CommitAudio()
	c.CreateResponse()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ { // session.update + 2 appends + commit + response.create
		msg := f.next(t)
		id, _ := msg["event_id"].(string)
		require.NotEmpty(t, id, "event %d missing event_id", i)
		assert.False(t, seen[id], "duplicate event_id %s", id)
		seen[id] = true
	}
}

func TestSessionCreatedCapturesID(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "session.created",
		"session": map[string]any{"id": "sess_42"},
	}))

	ev := nextEvent(t, c.Events())
	assert.Equal(t, EventSessionCreated, ev.Type)
	assert.Equal(t, "sess_42", ev.SessionID)
	assert.Equal(t, "sess_42", c.SessionID())
}

func TestAudioAndTextDeltas(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "response.audio.delta", "delta": "UklGRg=="}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "response.text.delta", "delta": "hello"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "response.audio.done"}))

	ev := nextEvent(t, c.Events())
	assert.Equal(t, EventAudioDelta, ev.Type)
	assert.Equal(t, "UklGRg==", ev.Audio)

	ev = nextEvent(t, c.Events())
	assert.Equal(t, EventTextDelta, ev.Type)
	assert.Equal(t, "hello", ev.Text)

	ev = nextEvent(t, c.Events())
	assert.Equal(t, EventAudioDone, ev.Type)
}

func TestProviderErrorIsNonFatal(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":  "error",
		"error": map[string]any{"code": "rate_limited", "message": "slow down"},
	}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "response.text.delta", "delta": "still here"}))

	ev := nextEvent(t, c.Events())
	require.Equal(t, EventError, ev.Type)
	require.NotNil(t, ev.Err)
	assert.Equal(t, "rate_limited", ev.Err.Code)

	// connection survived the provider error
	ev = nextEvent(t, c.Events())
	assert.Equal(t, EventTextDelta, ev.Type)
}

func TestUnknownTypeRepublishedVerbatim(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":        "response.cancelled",
		"response_id": "resp_7",
	}))

	ev := nextEvent(t, c.Events())
	assert.Equal(t, EventType("response.cancelled"), ev.Type)
	require.NotEmpty(t, ev.Raw)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(ev.Raw, &raw))
	assert.Equal(t, "resp_7", raw["response_id"])
}

func TestMalformedMessageDropped(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "response.text.delta", "delta": "after"}))

	ev := nextEvent(t, c.Events())
	assert.Equal(t, EventTextDelta, ev.Type)
	assert.Equal(t, "after", ev.Text)
}

func TestToolCallProducesFunctionCallOutput(t *testing.T) {
	f := newFakeProvider(t)
	d := &stubDispatcher{}
	c := testClient(t, f, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	args := `{"customer_name":"Lena","date":"2025-01-10","time":"10:00","purpose":"demo"}`
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      "response.function_call_arguments.done",
		"name":      "schedule_appointment",
		"call_id":   "call_9",
		"arguments": args,
	}))

	ev := nextEvent(t, c.Events())
	assert.Equal(t, EventToolCall, ev.Type)
	assert.Equal(t, "schedule_appointment", ev.Tool)
	assert.Equal(t, "call_9", ev.CallID)

	msg := f.next(t)
	require.Equal(t, "conversation.item.create", msg["type"])
	assert.NotEmpty(t, msg["event_id"])

	item, ok := msg["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function_call_output", item["type"])
	assert.Equal(t, "call_9", item["call_id"])

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(item["output"].(string)), &result))
	assert.Equal(t, true, result["success"])
	assert.NotEmpty(t, result["appointment_id"])
	assert.Contains(t, result["message"], "Lena")
}

func TestToolCallUnknownName(t *testing.T) {
	f := newFakeProvider(t)
	d := &stubDispatcher{result: map[string]any{"error": "Unknown function"}}
	c := testClient(t, f, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      "response.function_call_arguments.done",
		"name":      "order_pizza",
		"call_id":   "call_10",
		"arguments": "{}",
	}))

	nextEvent(t, c.Events()) // tool.call

	msg := f.next(t)
	item := msg["item"].(map[string]any)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(item["output"].(string)), &result))
	assert.Equal(t, "Unknown function", result["error"])
}

func TestToolCallWithNoDispatcher(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	conn := f.conn(t)
	f.next(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      "response.function_call_arguments.done",
		"name":      "anything",
		"call_id":   "call_11",
		"arguments": "{}",
	}))

	nextEvent(t, c.Events())

	msg := f.next(t)
	item := msg["item"].(map[string]any)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(item["output"].(string)), &result))
	assert.Equal(t, "Unknown function", result["error"])
}

func TestDisconnectIdempotent(t *testing.T) {
	f := newFakeProvider(t)
	c := testClient(t, f, nil)
	require.NoError(t, c.Connect(context.Background()))
	f.next(t)

	c.Disconnect()
	assert.NotPanics(t, c.Disconnect)

	// the event channel drains with a terminal disconnect and closes
	for ev := range c.Events() {
		assert.Equal(t, EventDisconnected, ev.Type)
	}
}

func TestDisconnectBeforeConnect(t *testing.T) {
	c := NewClient(Config{URL: "ws://unused", APIKey: "k"})
	assert.NotPanics(t, c.Disconnect)
}
