// Package observability translates lifecycle events into Prometheus metrics.
package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packhound/packhound/pkg/domain"
)

// Metrics holds the collectors for analysis runs.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	nodeActivations *prometheus.CounterVec
	plansCommitted  prometheus.Counter
	workerReturns   *prometheus.CounterVec
	formatRetries   prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packhound",
			Name:      "runs_total",
			Help:      "Completed analysis runs by outcome.",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "packhound",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of analysis runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		nodeActivations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packhound",
			Name:      "node_activations_total",
			Help:      "Graph node activations by node.",
		}, []string{"node"}),
		plansCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "packhound",
			Name:      "plans_committed_total",
			Help:      "Planning rounds that committed a non-empty plan.",
		}),
		workerReturns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packhound",
			Name:      "worker_returns_total",
			Help:      "Worker task completions by role and truncation repair.",
		}, []string{"role", "truncated"}),
		formatRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "packhound",
			Name:      "format_retries_total",
			Help:      "Structured-output attempts that failed and were retried.",
		}),
	}
}

// Hooks returns lifecycle hooks feeding these collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeActivations.WithLabelValues(e.Node).Inc()
		},
		OnPlanCommit: func(_ context.Context, _ *domain.PlanEvent) {
			m.plansCommitted.Inc()
		},
		OnWorkerReturn: func(_ context.Context, e *domain.WorkerEvent) {
			m.workerReturns.WithLabelValues(string(e.Role), strconv.FormatBool(e.Truncated)).Inc()
		},
		OnFormatRetry: func(_ context.Context, _ *domain.RetryEvent) {
			m.formatRetries.Inc()
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			m.runsTotal.WithLabelValues(string(e.Outcome)).Inc()
			m.runDuration.Observe(e.Duration.Seconds())
		},
	}
}
