package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/packhound/packhound/pkg/domain"
)

func TestHooksFeedCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "supervisor"})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "supervisor"})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "worker"})
	hooks.OnPlanCommit(ctx, &domain.PlanEvent{Steps: 3})
	hooks.OnWorkerReturn(ctx, &domain.WorkerEvent{Role: domain.RoleResearcher, Truncated: false})
	hooks.OnWorkerReturn(ctx, &domain.WorkerEvent{Role: domain.RoleDeobfuscator, Truncated: true})
	hooks.OnFormatRetry(ctx, &domain.RetryEvent{Attempt: 1})
	hooks.OnRunFinish(ctx, &domain.RunEvent{Outcome: domain.OutcomeComplete, Duration: 2 * time.Second})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.nodeActivations.WithLabelValues("supervisor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeActivations.WithLabelValues("worker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.plansCommitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerReturns.WithLabelValues("researcher", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerReturns.WithLabelValues("deobfuscator", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.formatRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("complete")))
}

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewMetrics(reg)

	families, err := reg.Gather()
	assert.NoError(t, err)
	// Counters appear after first increment; registration itself must not fail
	// or duplicate.
	assert.NotNil(t, families)
}
