package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrchestratorMetrics exposes counters/histograms for the reply orchestrator.
type OrchestratorMetrics struct {
	inboundTotal      *prometheus.CounterVec
	coalescedTotal    prometheus.Counter
	lockRetriesTotal  prometheus.Counter
	generationTotal   *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	toolInvocations   *prometheus.CounterVec
	delayedActions    *prometheus.CounterVec
	publishedTotal    *prometheus.CounterVec
}

func NewOrchestratorMetrics(reg prometheus.Registerer) *OrchestratorMetrics {
	m := &OrchestratorMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "orchestrator",
			Name:      "inbound_total",
			Help:      "Inbound turns by author kind and handling outcome",
		}, []string{"author", "outcome"}),
		coalescedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "orchestrator",
			Name:      "coalesced_total",
			Help:      "Pending payloads replaced by a newer message before generation",
		}),
		lockRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "orchestrator",
			Name:      "lock_retries_total",
			Help:      "Timer fires that found a generation pass in flight",
		}),
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "orchestrator",
			Name:      "generation_total",
			Help:      "Generation passes by outcome",
		}, []string{"outcome"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "orchestrator",
			Name:      "generation_latency_seconds",
			Help:      "Latency of generation passes including tool calls",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"outcome"}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "assistant",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and status",
		}, []string{"tool", "status"}),
		delayedActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "orchestrator",
			Name:      "delayed_actions_total",
			Help:      "Scheduled task lifecycle events by kind",
		}, []string{"kind", "event"}),
		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "orchestrator",
			Name:      "published_total",
			Help:      "Agent messages published by kind",
		}, []string{"kind", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.inboundTotal, m.coalescedTotal, m.lockRetriesTotal, m.generationTotal,
		m.generationLatency, m.toolInvocations, m.delayedActions, m.publishedTotal,
	)
	return m
}

func (m *OrchestratorMetrics) ObserveInbound(author, outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(author, outcome).Inc()
}

func (m *OrchestratorMetrics) ObserveCoalesced() {
	if m == nil {
		return
	}
	m.coalescedTotal.Inc()
}

func (m *OrchestratorMetrics) ObserveLockRetry() {
	if m == nil {
		return
	}
	m.lockRetriesTotal.Inc()
}

func (m *OrchestratorMetrics) ObserveGeneration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.generationTotal.WithLabelValues(outcome).Inc()
	m.generationLatency.WithLabelValues(outcome).Observe(seconds)
}

// ObserveToolInvocation satisfies assistant.ToolRecorder.
func (m *OrchestratorMetrics) ObserveToolInvocation(tool string, ok, completed bool) {
	if m == nil {
		return
	}
	status := "failed"
	switch {
	case completed:
		status = "completed"
	case ok:
		status = "ok"
	}
	m.toolInvocations.WithLabelValues(tool, status).Inc()
}

func (m *OrchestratorMetrics) ObserveDelayedAction(kind, event string) {
	if m == nil {
		return
	}
	m.delayedActions.WithLabelValues(kind, event).Inc()
}

func (m *OrchestratorMetrics) ObservePublished(kind, status string) {
	if m == nil {
		return
	}
	m.publishedTotal.WithLabelValues(kind, status).Inc()
}
