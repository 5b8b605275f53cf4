// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks turns currently streaming.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workorder_sessions_active",
		Help: "Generation sessions currently streaming",
	})

	// TurnsTotal counts finished turns by outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workorder_turns_total",
		Help: "Finished generation turns by outcome",
	}, []string{"outcome"})

	// StopRequestsTotal counts stop requests by whether a live stream was found.
	StopRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workorder_stop_requests_total",
		Help: "Stop requests by whether a live stream was found",
	}, []string{"found"})

	// ToolCallsTotal counts tool invocations by tool and status.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workorder_tool_calls_total",
		Help: "Tool invocations by tool and status",
	}, []string{"tool", "status"})

	// ToolCallDuration tracks tool latency.
	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workorder_tool_call_duration_seconds",
		Help:    "Tool invocation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"tool"})

	// WorkOrderAPIRequests counts outbound work-order API calls by path and result.
	WorkOrderAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workorder_api_requests_total",
		Help: "Outbound work-order API requests by path and result",
	}, []string{"path", "result"})

	// WorkflowRunsTotal counts Dify workflow runs by result.
	WorkflowRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workorder_workflow_runs_total",
		Help: "Dify workflow runs by result",
	}, []string{"result"})
)
