package packhound

import (
	"context"
	"log/slog"
	"time"

	"github.com/packhound/packhound/internal/orchestrator"
	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
)

// Version is the library and CLI version.
const Version = "0.1.0"

// dateLayout renders today's date the way the prompts expect it.
const dateLayout = "January 02, 2006"

// Engine is the top-level entry point for running investigations.
type Engine struct {
	graph      *orchestrator.Graph
	stepBudget int
	taskBudget int
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine, *[]orchestrator.Option)

// WithStepBudget overrides the per-run step budget.
func WithStepBudget(n int) Option {
	return func(e *Engine, _ *[]orchestrator.Option) {
		if n > 0 {
			e.stepBudget = n
		}
	}
}

// WithTaskBudget overrides the per-run task budget.
func WithTaskBudget(n int) Option {
	return func(e *Engine, _ *[]orchestrator.Option) {
		if n > 0 {
			e.taskBudget = n
		}
	}
}

// WithStepCeiling overrides the node-activation backstop.
func WithStepCeiling(n int) Option {
	return func(_ *Engine, opts *[]orchestrator.Option) {
		*opts = append(*opts, orchestrator.WithStepCeiling(n))
	}
}

// WithFormatRetries overrides the structured-output retry bound.
func WithFormatRetries(n int) Option {
	return func(_ *Engine, opts *[]orchestrator.Option) {
		*opts = append(*opts, orchestrator.WithFormatRetries(n))
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(_ *Engine, opts *[]orchestrator.Option) {
		*opts = append(*opts, orchestrator.WithLogger(l))
	}
}

// WithLifecycleHooks installs run observability hooks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(_ *Engine, opts *[]orchestrator.Option) {
		*opts = append(*opts, orchestrator.WithHooks(h))
	}
}

// New builds an Engine over the given capabilities. Workers must cover the
// researcher and deobfuscator roles.
func New(reasoner ports.Reasoner, formatter ports.Formatter, workers []ports.Worker, opts ...Option) (*Engine, error) {
	e := &Engine{
		stepBudget: domain.DefaultStepBudget,
		taskBudget: domain.DefaultTaskBudget,
		now:        time.Now,
	}
	var graphOpts []orchestrator.Option
	for _, opt := range opts {
		opt(e, &graphOpts)
	}

	graph, err := orchestrator.NewGraph(reasoner, formatter, workers, graphOpts...)
	if err != nil {
		return nil, err
	}
	e.graph = graph
	return e, nil
}

// Analyze investigates one package. The returned state is always non-nil and
// carries everything committed before err, so callers can inspect partial
// progress after failed or exhausted runs.
func (e *Engine) Analyze(ctx context.Context, packageName string, units []domain.SourceUnit) (*domain.AnalysisState, error) {
	state := domain.NewAnalysisState(packageName, e.now().Format(dateLayout), units)
	state.RemainingSteps = e.stepBudget
	state.RemainingTasks = e.taskBudget

	err := e.graph.Run(ctx, state)
	return state, err
}
