package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus-sw/call-agent/internal/metrics"
	"github.com/marcus-sw/call-agent/internal/realtime"
)

// Handler executes one backend action. It returns the tool-specific result
// fields; the registry wraps errors into the structured result shape.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool is one dispatchable entry: schema plus handler.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]realtime.ToolProperty
	Required    []string
	Handler     Handler
}

const defaultTimeout = 10 * time.Second

// Registry maps tool names to handlers. Every dispatch produces a result;
// the provider has no notion of a call that never returns, so an unanswered
// tool call would stall the conversation indefinitely.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
}

// NewRegistry creates an empty registry. timeout bounds each handler; zero
// selects the default.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: timeout,
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Schemas renders the catalog in the provider's function-tool wire shape.
func (r *Registry) Schemas() []realtime.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]realtime.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, realtime.Tool{
			Type: "function",
			Function: realtime.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters: realtime.ToolParameters{
					Type:       "object",
					Properties: t.Parameters,
					Required:   t.Required,
				},
			},
		})
	}
	return out
}

// Dispatch validates and executes the named tool. It always returns a result
// map: argument problems, unknown names, handler errors and timeouts all come
// back as {"error": ...} rather than faulting.
func (r *Registry) Dispatch(ctx context.Context, name, rawArgs string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "bad_args").Inc()
		return errorResult(fmt.Sprintf("invalid arguments: %v", err))
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		slog.Warn("unknown tool requested", "name", name)
		metrics.ToolCallsTotal.WithLabelValues(name, "unknown").Inc()
		return errorResult("Unknown function")
	}

	for _, req := range tool.Required {
		if _, present := args[req]; !present {
			metrics.ToolCallsTotal.WithLabelValues(name, "bad_args").Inc()
			return errorResult(fmt.Sprintf("missing required argument: %s", req))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := runHandler(ctx, tool.Handler, args)
	metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		slog.Error("tool timed out", "name", name, "timeout", r.timeout)
		metrics.ToolCallsTotal.WithLabelValues(name, "timeout").Inc()
		return errorResult(fmt.Sprintf("%s timed out", name))
	case err != nil:
		slog.Error("tool failed", "name", name, "error", err)
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		return errorResult(err.Error())
	}

	metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()
	return result
}

// runHandler executes the handler in its own goroutine so a stuck handler
// cannot outlive its deadline from the dispatcher's point of view.
func runHandler(ctx context.Context, h Handler, args map[string]any) (map[string]any, error) {
	type outcome struct {
		result map[string]any
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := h(ctx, args)
		ch <- outcome{result, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		return out.result, out.err
	}
}

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
