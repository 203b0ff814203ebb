package realtime

import "encoding/json"

// Wire shapes for the provider's JSON-framed protocol. Outbound events all
// carry a unique event_id for correlation.

type sessionUpdateEvent struct {
	EventID string        `json:"event_id"`
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type audioAppendEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

// controlEvent covers bodyless events: input_audio_buffer.commit and
// response.create.
type controlEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

type itemCreateEvent struct {
	EventID string           `json:"event_id"`
	Type    string           `json:"type"`
	Item    ConversationItem `json:"item"`
}

// ConversationItem is the inner "item" object of conversation.item.create.
// The gateway only ever creates function_call_output items; answering a tool
// call any other way leaves the provider's turn hanging.
type ConversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// SessionConfig is the session object sent in session.update right after the
// transport opens.
type SessionConfig struct {
	Modalities        []string       `json:"modalities,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
	Tools             []Tool         `json:"tools,omitempty"`
	ToolChoice        string         `json:"tool_choice,omitempty"`
	Temperature       float64        `json:"temperature,omitempty"`
}

// TurnDetection holds the provider-side voice activity configuration.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// Tool declares one callable function in the session's tool catalog.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  ToolParameters `json:"parameters"`
}

type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

type ToolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// serverEvent is a flat decode target covering every inbound event kind the
// gateway consumes. Fields irrelevant to a given type stay zero.
type serverEvent struct {
	Type      string          `json:"type"`
	EventID   string          `json:"event_id"`
	Session   *sessionInfo    `json:"session"`
	Delta     string          `json:"delta"`
	Name      string          `json:"name"`
	CallID    string          `json:"call_id"`
	Arguments string          `json:"arguments"`
	Item      json.RawMessage `json:"item"`
	Error     *APIError       `json:"error"`
}

type sessionInfo struct {
	ID string `json:"id"`
}

// APIError is a provider-reported error. Non-fatal to the connection unless
// the transport itself closes.
type APIError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// EventType tags entries on a client's local event stream.
type EventType string

const (
	EventSessionCreated EventType = "session.created"
	EventAudioDelta     EventType = "audio.delta"
	EventAudioDone      EventType = "audio.done"
	EventTextDelta      EventType = "text.delta"
	EventToolCall       EventType = "tool.call"
	EventItemCreated    EventType = "conversation.item.created"
	EventError          EventType = "error"
	EventDisconnected   EventType = "disconnected"
)

// Event is one entry on the client's ordered local event stream. Unrecognized
// provider types are republished verbatim under their wire type name with Raw
// set, never dropped.
type Event struct {
	Type      EventType
	SessionID string
	Audio     string // base64 audio delta
	Text      string // transcript delta
	Tool      string // tool name for EventToolCall
	CallID    string // provider call id correlating a tool request/result
	Raw       json.RawMessage
	Err       *APIError
}
