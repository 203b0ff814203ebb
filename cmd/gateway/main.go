package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus-sw/call-agent/internal/bridge"
	"github.com/marcus-sw/call-agent/internal/prompts"
	"github.com/marcus-sw/call-agent/internal/realtime"
	"github.com/marcus-sw/call-agent/internal/store"
	"github.com/marcus-sw/call-agent/internal/summary"
	"github.com/marcus-sw/call-agent/internal/tools"
	"github.com/marcus-sw/call-agent/internal/twilio"
	"github.com/marcus-sw/call-agent/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()
	if cfg.openaiAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	// Backend store for tool actions
	var backend store.Store
	if cfg.databaseURL != "" {
		pg, err := store.OpenPostgres(cfg.databaseURL)
		if err != nil {
			slog.Error("store", "error", err)
			os.Exit(1)
		}
		backend = pg
		slog.Info("postgres store enabled")
	} else {
		backend = store.NewMemory()
		slog.Info("in-memory store enabled")
	}
	defer backend.Close()

	// Tool dispatch table
	toolRegistry := tools.NewRegistry(cfg.toolTimeout)
	tools.RegisterBuiltins(toolRegistry, backend)

	var summarizer bridge.Summarizer
	if cfg.summaryModel != "" {
		summarizer = summary.New(cfg.openaiAPIKey, cfg.summaryModel)
		slog.Info("post-call summary enabled", "model", cfg.summaryModel)
	}

	turnDetection := realtime.TurnDetection{
		Type:              "server_vad",
		Threshold:         cfg.vadThreshold,
		PrefixPaddingMs:   cfg.vadPrefixPaddingMs,
		SilenceDurationMs: cfg.vadSilenceDurationMs,
	}

	registry := bridge.NewRegistry()

	newSession := func(callSID, streamSID string, onEvent bridge.EventCallback) *bridge.Session {
		client := realtime.NewClient(realtime.Config{
			URL:           cfg.realtimeURL,
			APIKey:        cfg.openaiAPIKey,
			Model:         cfg.realtimeModel,
			Voice:         cfg.voice,
			Instructions:  prompts.ForSession(cfg.instructions),
			Temperature:   cfg.temperature,
			TurnDetection: turnDetection,
			Tools:         toolRegistry.Schemas(),
			Dispatcher:    toolRegistry,
		})
		return bridge.NewSession(bridge.Config{
			CallSID:    callSID,
			StreamSID:  streamSID,
			Upstream:   client,
			OnEvent:    onEvent,
			Summarizer: summarizer,
		})
	}

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Registry:      registry,
		NewSession:    newSession,
		MaxConcurrent: cfg.maxConcurrentCalls,
	})

	carrier := twilio.NewClient(twilio.Config{
		AccountSID: cfg.twilioAccountSID,
		AuthToken:  cfg.twilioAuthToken,
		From:       cfg.twilioFrom,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		cfg:       cfg,
		carrier:   carrier,
		registry:  registry,
		wsHandler: wsHandler,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)

		slog.Info("ending active calls", "count", registry.Len())
		registry.EndAll()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("gateway starting", "addr", addr, "max_concurrent", cfg.maxConcurrentCalls, "model", cfg.realtimeModel)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}
