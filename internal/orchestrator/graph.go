// Package orchestrator implements the supervisor-driven analysis loop. A
// reasoning model plans, role-bound workers execute one task at a time, and
// the loop re-plans until the finalizer commits the verdict or a budget runs
// out.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/packhound/packhound/internal/logging"
	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
)

const (
	// DefaultStepCeiling bounds total node activations per run, independent
	// of the state's own step budget.
	DefaultStepCeiling = 50

	// DefaultFormatRetries bounds structured-output conversion attempts.
	DefaultFormatRetries = 20
)

const (
	nodeSupervisor = "supervisor"
	nodeWorker     = "worker"
	nodeFinalizer  = "finalizer"
)

// Graph wires the capabilities into the plan-execute-replan loop. Construct
// it with NewGraph; the zero value is not usable.
type Graph struct {
	reasoner  ports.Reasoner
	formatter ports.Formatter
	workers   map[domain.WorkerRole]ports.Worker

	stepCeiling   int
	formatRetries int
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithStepCeiling overrides the activation ceiling.
func WithStepCeiling(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.stepCeiling = n
		}
	}
}

// WithFormatRetries overrides the structured-output retry bound.
func WithFormatRetries(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.formatRetries = n
		}
	}
}

// WithHooks installs lifecycle hooks. Nil fields are skipped.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(g *Graph) { g.hooks = h }
}

// WithLogger sets the graph logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGraph builds a Graph over the given capabilities. Every non-terminal
// role must have a worker; the finalizer is handled by the graph itself.
func NewGraph(reasoner ports.Reasoner, formatter ports.Formatter, workers []ports.Worker, opts ...Option) (*Graph, error) {
	if reasoner == nil {
		return nil, fmt.Errorf("orchestrator: reasoner is required")
	}
	if formatter == nil {
		return nil, fmt.Errorf("orchestrator: formatter is required")
	}

	byRole := make(map[domain.WorkerRole]ports.Worker, len(workers))
	for _, w := range workers {
		if w == nil {
			continue
		}
		if _, dup := byRole[w.Role()]; dup {
			return nil, fmt.Errorf("orchestrator: duplicate worker for role %q", w.Role())
		}
		byRole[w.Role()] = w
	}
	for _, role := range []domain.WorkerRole{domain.RoleResearcher, domain.RoleDeobfuscator} {
		if _, ok := byRole[role]; !ok {
			return nil, fmt.Errorf("orchestrator: missing worker for role %q", role)
		}
	}

	g := &Graph{
		reasoner:      reasoner,
		formatter:     formatter,
		workers:       byRole,
		stepCeiling:   DefaultStepCeiling,
		formatRetries: DefaultFormatRetries,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Run drives the state machine to completion, mutating s in place. It
// returns nil exactly when s carries a final report. Budget exhaustion, the
// activation ceiling, context cancellation and capability failures all
// terminate the run with s reflecting everything committed so far.
func (g *Graph) Run(ctx context.Context, s *domain.AnalysisState) error {
	start := time.Now()
	outcome, err := g.run(ctx, s)
	g.runEvent(ctx, s, outcome, time.Since(start))
	return err
}

func (g *Graph) run(ctx context.Context, s *domain.AnalysisState) (domain.RunOutcome, error) {
	activations := 0
	node := nodeSupervisor

	for {
		if err := ctx.Err(); err != nil {
			return domain.OutcomeFailed, err
		}
		if activations >= g.stepCeiling {
			return domain.OutcomeStepCeiling,
				fmt.Errorf("%w: %d activations", domain.ErrStepCeiling, activations)
		}
		if s.RemainingSteps <= 0 {
			return domain.OutcomeBudgetExhausted,
				fmt.Errorf("%w: step budget spent before %s", domain.ErrBudgetExhausted, node)
		}
		activations++
		s.RemainingSteps--

		g.nodeEvent(ctx, s, domain.EventNodeEnter, node)
		delta, err := g.activate(ctx, s, node)
		if err != nil {
			return domain.OutcomeFailed, err
		}
		if err := s.Apply(delta); err != nil {
			return domain.OutcomeFailed, fmt.Errorf("node %s: %w", node, err)
		}
		g.nodeEvent(ctx, s, domain.EventNodeLeave, node)

		if node == nodeSupervisor && delta.PlanReplaced && len(s.Plan) > 0 {
			g.planEvent(ctx, s)
		}
		if s.HasFinalReport() {
			return domain.OutcomeComplete, nil
		}
		node = g.route(s, node)
	}
}

func (g *Graph) activate(ctx context.Context, s *domain.AnalysisState, node string) (domain.Delta, error) {
	switch node {
	case nodeSupervisor:
		return g.superviseOnce(ctx, s)
	case nodeWorker:
		return g.dispatchWorker(ctx, s)
	case nodeFinalizer:
		return g.finalize(ctx, s)
	default:
		return domain.Delta{}, fmt.Errorf("unknown node %q", node)
	}
}

// route picks the next node. The supervisor routes on the head of the
// committed plan; an empty plan loops back into planning. Workers always
// return control to the supervisor.
func (g *Graph) route(s *domain.AnalysisState, node string) string {
	if node != nodeSupervisor {
		return nodeSupervisor
	}
	if len(s.Plan) == 0 {
		return nodeSupervisor
	}
	if s.Plan[0].Role == domain.RoleFinalizer {
		return nodeFinalizer
	}
	return nodeWorker
}

func (g *Graph) nodeEvent(ctx context.Context, s *domain.AnalysisState, t domain.EventType, node string) {
	var fn func(context.Context, *domain.NodeEvent)
	switch t {
	case domain.EventNodeEnter:
		fn = g.hooks.OnNodeEnter
	case domain.EventNodeLeave:
		fn = g.hooks.OnNodeLeave
	}
	if fn == nil {
		return
	}
	fn(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: t, PackageName: s.PackageName},
		Node:      node,
	})
}

func (g *Graph) planEvent(ctx context.Context, s *domain.AnalysisState) {
	if g.hooks.OnPlanCommit == nil {
		return
	}
	g.hooks.OnPlanCommit(ctx, &domain.PlanEvent{
		EventBase:      domain.EventBase{Timestamp: time.Now(), Type: domain.EventPlanCommit, PackageName: s.PackageName},
		Steps:          len(s.Plan),
		RemainingTasks: s.RemainingTasks,
	})
}

func (g *Graph) workerEvent(ctx context.Context, role domain.WorkerRole, truncated bool) {
	if g.hooks.OnWorkerReturn == nil {
		return
	}
	g.hooks.OnWorkerReturn(ctx, &domain.WorkerEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventWorkerReturn},
		Role:      role,
		Truncated: truncated,
	})
}

func (g *Graph) retryEvent(ctx context.Context, attempt int) {
	if g.hooks.OnFormatRetry == nil {
		return
	}
	g.hooks.OnFormatRetry(ctx, &domain.RetryEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventFormatRetry},
		Attempt:   attempt,
	})
}

func (g *Graph) runEvent(ctx context.Context, s *domain.AnalysisState, outcome domain.RunOutcome, elapsed time.Duration) {
	g.logger.Info("run finished",
		"package", s.PackageName,
		"outcome", string(outcome),
		"duration", elapsed,
		"remaining_steps", s.RemainingSteps,
		"remaining_tasks", s.RemainingTasks,
	)
	if g.hooks.OnRunFinish == nil {
		return
	}
	g.hooks.OnRunFinish(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunFinish, PackageName: s.PackageName},
		Outcome:   outcome,
		Duration:  elapsed,
	})
}
