package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowrun"

// Metrics holds the engine collectors.
type Metrics struct {
	NodeVisits        *prometheus.CounterVec
	RunsStarted       prometheus.Counter
	RunsCompleted     prometheus.Counter
	Inputs            *prometheus.CounterVec
	Misconfigurations prometheus.Counter
	RunDuration       prometheus.Histogram

	mu      sync.Mutex
	started map[string]time.Time
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits by node type.",
		}, []string{"type"}),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of flow runs started.",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of flow runs that reached completion.",
		}),
		Inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inputs_total",
			Help:      "Total number of user inputs evaluated at condition nodes.",
		}, []string{"outcome"}),
		Misconfigurations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misconfigurations_total",
			Help:      "Total number of recovered flow defects.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from run start to completion.",
			Buckets:   []float64{0.5, 1, 5, 15, 60, 300, 1800},
		}),
		started: make(map[string]time.Time),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.RunsStarted, m.RunsCompleted, m.Inputs, m.Misconfigurations, m.RunDuration)
	}
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnStatusChange: m.onStatus,
		OnInput: func(_ context.Context, e *domain.InputEvent) {
			outcome := "no"
			if e.Outcome {
				outcome = "yes"
			}
			m.Inputs.WithLabelValues(outcome).Inc()
		},
		OnMisconfigured: func(context.Context, *domain.MisconfigurationEvent) {
			m.Misconfigurations.Inc()
		},
	}
}

func (m *Metrics) onStatus(_ context.Context, e *domain.StatusEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case e.To == domain.StatusRunning && e.From != domain.StatusWaitingForInput:
		m.RunsStarted.Inc()
		m.started[e.SessionID] = e.Timestamp
	case e.To == domain.StatusCompleted:
		m.RunsCompleted.Inc()
		if at, ok := m.started[e.SessionID]; ok {
			m.RunDuration.Observe(e.Timestamp.Sub(at).Seconds())
			delete(m.started, e.SessionID)
		}
	case e.To == domain.StatusIdle:
		delete(m.started, e.SessionID)
	}
}
