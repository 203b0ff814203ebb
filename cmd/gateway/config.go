package main

import (
	"time"

	"github.com/marcus-sw/call-agent/internal/env"
	"github.com/marcus-sw/call-agent/internal/prompts"
)

type config struct {
	port       string
	publicHost string // externally reachable host for webhook and stream URLs

	openaiAPIKey  string
	realtimeURL   string
	realtimeModel string
	voice         string
	instructions  string
	temperature   float64

	vadThreshold         float64
	vadPrefixPaddingMs   int
	vadSilenceDurationMs int

	maxConcurrentCalls int
	toolTimeout        time.Duration
	databaseURL        string
	summaryModel       string

	twilioAccountSID string
	twilioAuthToken  string
	twilioFrom       string
	greeting         string
}

func loadConfig() config {
	return config{
		port:       env.Str("GATEWAY_PORT", "8080"),
		publicHost: env.Str("PUBLIC_HOST", "localhost:8080"),

		openaiAPIKey:  env.Str("OPENAI_API_KEY", ""),
		realtimeURL:   env.Str("REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		realtimeModel: env.Str("REALTIME_MODEL", "gpt-4o-realtime-preview"),
		voice:         env.Str("REALTIME_VOICE", "alloy"),
		instructions:  env.Str("AGENT_INSTRUCTIONS", prompts.DefaultInstructions),
		temperature:   env.Float("REALTIME_TEMPERATURE", 0.8),

		vadThreshold:         env.Float("VAD_THRESHOLD", 0.5),
		vadPrefixPaddingMs:   env.Int("VAD_PREFIX_PADDING_MS", 300),
		vadSilenceDurationMs: env.Int("VAD_SILENCE_DURATION_MS", 500),

		maxConcurrentCalls: env.Int("MAX_CONCURRENT_CALLS", 100),
		toolTimeout:        env.Dur("TOOL_TIMEOUT", 10*time.Second),
		databaseURL:        env.Str("DATABASE_URL", ""),
		summaryModel:       env.Str("SUMMARY_MODEL", ""),

		twilioAccountSID: env.Str("TWILIO_ACCOUNT_SID", ""),
		twilioAuthToken:  env.Str("TWILIO_AUTH_TOKEN", ""),
		twilioFrom:       env.Str("TWILIO_PHONE_NUMBER", ""),
		greeting:         env.Str("CALL_GREETING", "Welcome to Marcus Software. Connecting you to our assistant."),
	}
}
