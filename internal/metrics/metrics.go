package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_calls_active",
		Help: "Currently active call sessions",
	})

	CallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_calls_total",
		Help: "Total calls processed",
	})

	CallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Call duration from stream start to stream stop",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	})

	AudioFramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_audio_frames_in_total",
		Help: "Media frames received from the carrier",
	})

	AudioFramesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_audio_frames_out_total",
		Help: "Audio deltas written back to the carrier",
	})

	InputLevelDB = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_input_level_db",
		Help:    "RMS level of inbound caller audio in dBFS",
		Buckets: []float64{-60, -50, -40, -35, -30, -25, -20, -15, -10, -5},
	})

	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_realtime_events_total",
		Help: "Provider events received by type",
	}, []string{"type"})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_tool_calls_total",
		Help: "Tool invocations by name and outcome",
	}, []string{"tool", "outcome"})

	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_tool_call_duration_seconds",
		Help:    "Tool handler latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"tool"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})
)
