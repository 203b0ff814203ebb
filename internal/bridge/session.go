package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/marcus-sw/call-agent/internal/metrics"
	"github.com/marcus-sw/call-agent/internal/realtime"
)

// Upstream is the provider-side session a bridge forwards audio into.
// *realtime.Client is the production implementation.
type Upstream interface {
	Connect(ctx context.Context) error
	SendAudio(frame []byte)
	CommitAudio()
	CreateResponse()
	Events() <-chan realtime.Event
	Disconnect()
}

// Summarizer produces a post-call transcript summary. Optional.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Event is one outward-facing bridge event delivered to the carrier side.
type Event struct {
	Type      string // "ready", "audio.output", "transcript.update", "call.ended", "error"
	StreamSID string
	Payload   string // base64 audio for audio.output
	Text      string
	SessionID string
	Err       error
}

// EventCallback is invoked for each outward event, in upstream receipt order.
type EventCallback func(Event)

// Config wires one call session.
type Config struct {
	CallSID    string
	StreamSID  string
	Upstream   Upstream
	OnEvent    EventCallback
	Summarizer Summarizer

	// SummaryTimeout bounds the post-call summary request.
	SummaryTimeout time.Duration
}

// Snapshot is a read-only view of a session's accumulated metrics.
type Snapshot struct {
	CallSID         string        `json:"call_sid"`
	StreamSID       string        `json:"stream_sid"`
	Active          bool          `json:"active"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	TranscriptChars int           `json:"transcript_chars"`
	ToolCalls       int           `json:"tool_calls"`
	FramesForwarded int           `json:"frames_forwarded"`
}

// Session bridges one phone call between the carrier transport and its
// upstream session. It owns exactly one Upstream for its lifetime.
type Session struct {
	cfg       Config
	createdAt time.Time

	mu              sync.Mutex
	active          bool
	transcript      strings.Builder
	toolCalls       int
	framesForwarded int

	endOnce sync.Once
	done    chan struct{}
}

// NewSession creates a session; Start must be called before audio flows.
func NewSession(cfg Config) *Session {
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = 30 * time.Second
	}
	return &Session{
		cfg:       cfg,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start connects the upstream session and begins republishing its events.
// On connect failure the call is marked inactive and the error returned;
// retry policy belongs to whoever placed the call.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	if err := s.cfg.Upstream.Connect(ctx); err != nil {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return fmt.Errorf("start call %s: %w", s.cfg.CallSID, err)
	}

	go s.pump()
	return nil
}

// Active reports whether the call still transports audio.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ProcessAudioInput forwards one carrier media frame upstream, preserving
// arrival order. A no-op once the call is inactive: frames arriving after
// End must not resurrect a closed session.
func (s *Session) ProcessAudioInput(frame []byte) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.framesForwarded++
	s.mu.Unlock()

	s.cfg.Upstream.SendAudio(frame)
}

// CommitAndRespond closes the provider's input buffer and requests a
// response. Manual turn taking for when the carrier's stop signal beats the
// provider's VAD.
func (s *Session) CommitAndRespond() {
	if !s.Active() {
		return
	}
	s.cfg.Upstream.CommitAudio()
	s.cfg.Upstream.CreateResponse()
}

// End tears the call down: marks inactive, disconnects upstream and emits
// exactly one terminal call.ended event. Idempotent; stop signal and
// transport close may both land here.
func (s *Session) End() {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		transcript := s.transcript.String()
		s.mu.Unlock()

		s.cfg.Upstream.Disconnect()

		duration := time.Since(s.createdAt)
		metrics.CallDuration.Observe(duration.Seconds())
		slog.Info("call ended", "call_sid", s.cfg.CallSID, "duration", duration, "transcript_chars", len(transcript))

		s.emit(Event{Type: "call.ended", StreamSID: s.cfg.StreamSID})
		close(s.done)

		if s.cfg.Summarizer != nil && transcript != "" {
			go s.summarize(transcript)
		}
	})
}

// Done is closed once the session has fully ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Metrics returns a read-only snapshot of the session.
func (s *Session) Metrics() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		CallSID:         s.cfg.CallSID,
		StreamSID:       s.cfg.StreamSID,
		Active:          s.active,
		StartedAt:       s.createdAt,
		Duration:        time.Since(s.createdAt),
		TranscriptChars: s.transcript.Len(),
		ToolCalls:       s.toolCalls,
		FramesForwarded: s.framesForwarded,
	}
}

// pump consumes the upstream event stream in receipt order and republishes
// it outward. It is the only path that writes toward the carrier socket.
func (s *Session) pump() {
	for ev := range s.cfg.Upstream.Events() {
		switch ev.Type {
		case realtime.EventSessionCreated:
			slog.Info("call session ready", "call_sid", s.cfg.CallSID, "session_id", ev.SessionID)
			s.emit(Event{Type: "ready", StreamSID: s.cfg.StreamSID, SessionID: ev.SessionID})

		case realtime.EventAudioDelta:
			if !s.Active() {
				continue
			}
			metrics.AudioFramesOut.Inc()
			s.emit(Event{Type: "audio.output", StreamSID: s.cfg.StreamSID, Payload: ev.Audio})

		case realtime.EventTextDelta:
			s.mu.Lock()
			s.transcript.WriteString(ev.Text)
			s.mu.Unlock()
			s.emit(Event{Type: "transcript.update", StreamSID: s.cfg.StreamSID, Text: ev.Text})

		case realtime.EventToolCall:
			s.mu.Lock()
			s.toolCalls++
			s.mu.Unlock()
			slog.Info("tool call", "call_sid", s.cfg.CallSID, "tool", ev.Tool)

		case realtime.EventError:
			metrics.Errors.WithLabelValues("bridge", "provider").Inc()
			slog.Error("provider error in call", "call_sid", s.cfg.CallSID, "error", ev.Err)
			s.emit(Event{Type: "error", StreamSID: s.cfg.StreamSID, Err: ev.Err})

		case realtime.EventDisconnected:
			s.End()

		case realtime.EventAudioDone, realtime.EventItemCreated:
			// observability only
			slog.Debug("upstream event", "call_sid", s.cfg.CallSID, "type", string(ev.Type))

		default:
			slog.Debug("unhandled upstream event", "call_sid", s.cfg.CallSID, "type", string(ev.Type))
		}
	}
}

func (s *Session) emit(ev Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}

func (s *Session) summarize(transcript string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SummaryTimeout)
	defer cancel()

	summary, err := s.cfg.Summarizer.Summarize(ctx, transcript)
	if err != nil {
		slog.Warn("post-call summary failed", "call_sid", s.cfg.CallSID, "error", err)
		return
	}
	slog.Info("post-call summary", "call_sid", s.cfg.CallSID, "summary", summary)
}
