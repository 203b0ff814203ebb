package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcus-sw/call-agent/internal/bridge"
	"github.com/marcus-sw/call-agent/internal/twilio"
)

type deps struct {
	cfg       config
	carrier   *twilio.Client
	registry  *bridge.Registry
	wsHandler http.Handler
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/media-stream", d.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/webhooks/voice", requireMethod(http.MethodPost, d.handleVoiceWebhook))
	mux.HandleFunc("/webhooks/status", requireMethod(http.MethodPost, d.handleStatusWebhook))
	mux.HandleFunc("/api/calls/outbound", requireMethod(http.MethodPost, d.handleOutboundCall))
	mux.HandleFunc("/api/calls", requireMethod(http.MethodGet, d.handleCalls))
}

// requireMethod restricts a route to one HTTP method, matching the behavior
// of Go 1.22+ ServeMux method patterns on the Go 1.21 toolchain (GET also
// accepts HEAD; other methods get 405 with an Allow header).
func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleVoiceWebhook answers the carrier's voice webhook with markup that
// greets the caller and connects the bidirectional media stream.
func (d deps) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	slog.Info("incoming call", "call_sid", r.PostFormValue("CallSid"), "from", r.PostFormValue("From"))

	streamURL := "wss://" + d.cfg.publicHost + "/ws/media-stream"
	markup, err := twilio.StreamTwiML(d.cfg.greeting, streamURL)
	if err != nil {
		slog.Error("render twiml", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(markup))
}

func (d deps) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	slog.Info("call status update",
		"call_sid", r.PostFormValue("CallSid"),
		"status", r.PostFormValue("CallStatus"),
	)
	w.WriteHeader(http.StatusOK)
}

// handleOutboundCall triggers an agent-initiated call. A carrier rejection
// is surfaced to the caller of the endpoint, never retried here.
func (d deps) handleOutboundCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone number required"})
		return
	}

	voiceURL := "https://" + d.cfg.publicHost + "/webhooks/voice"
	call, err := d.carrier.PlaceCall(r.Context(), req.PhoneNumber, voiceURL)
	if err != nil {
		slog.Error("outbound call failed", "to", req.PhoneNumber, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	slog.Info("outbound call initiated", "call_sid", call.SID, "status", call.Status)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"call_sid": call.SID,
		"status":   call.Status,
	})
}

type callView struct {
	CallSID         string  `json:"call_sid"`
	StreamSID       string  `json:"stream_sid"`
	Active          bool    `json:"active"`
	DurationSeconds float64 `json:"duration_seconds"`
	TranscriptChars int     `json:"transcript_chars"`
	ToolCalls       int     `json:"tool_calls"`
	FramesForwarded int     `json:"frames_forwarded"`
}

func (d deps) handleCalls(w http.ResponseWriter, r *http.Request) {
	snaps := d.registry.Snapshots()
	calls := make([]callView, 0, len(snaps))
	for _, s := range snaps {
		calls = append(calls, callView{
			CallSID:         s.CallSID,
			StreamSID:       s.StreamSID,
			Active:          s.Active,
			DurationSeconds: s.Duration.Seconds(),
			TranscriptChars: s.TranscriptChars,
			ToolCalls:       s.ToolCalls,
			FramesForwarded: s.FramesForwarded,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
