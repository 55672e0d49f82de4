package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhound/packhound/internal/sanitize"
	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
)

type scriptedReasoner struct {
	outputs []string
	calls   int
}

func (r *scriptedReasoner) Reason(_ context.Context, _ ports.Prompt) (string, error) {
	if r.calls >= len(r.outputs) {
		return "", errors.New("reasoner script exhausted")
	}
	out := r.outputs[r.calls]
	r.calls++
	return out, nil
}

// scriptedFormatter dispatches on the output type. Plans are popped from a
// queue; the report is filled from a fixed record.
type scriptedFormatter struct {
	plans   []planRecord
	planErr []error // consumed before plans, one per attempt
	report  domain.FinalReport
	calls   int
}

func (f *scriptedFormatter) Format(_ context.Context, _ string, out any) error {
	f.calls++
	switch v := out.(type) {
	case *planRecord:
		if len(f.planErr) > 0 {
			err := f.planErr[0]
			f.planErr = f.planErr[1:]
			return err
		}
		if len(f.plans) == 0 {
			return errors.New("formatter script exhausted")
		}
		*v = f.plans[0]
		f.plans = f.plans[1:]
		return nil
	case *domain.FinalReport:
		*v = f.report
		return nil
	default:
		return fmt.Errorf("unexpected output type %T", out)
	}
}

type stubWorker struct {
	role domain.WorkerRole
	fn   func(brief string) (string, error)
}

func (w *stubWorker) Role() domain.WorkerRole { return w.role }

func (w *stubWorker) Execute(_ context.Context, brief string) (string, error) {
	return w.fn(brief)
}

func defaultWorkers(result string) []ports.Worker {
	echo := func(string) (string, error) { return result, nil }
	return []ports.Worker{
		&stubWorker{role: domain.RoleResearcher, fn: echo},
		&stubWorker{role: domain.RoleDeobfuscator, fn: echo},
	}
}

func testState() *domain.AnalysisState {
	return domain.NewAnalysisState("requests-helper", "August 29, 2026", []domain.SourceUnit{
		{Filename: "setup.py", Code: "from setuptools import setup\nsetup(name='requests-helper')"},
	})
}

func plan(items ...planItem) planRecord { return planRecord{Plan: items} }

func TestRunCompletesBenignVerdict(t *testing.T) {
	reasoner := &scriptedReasoner{outputs: []string{
		"<think>deciding</think><plan>...</plan>",
		"<plan>finalize</plan>",
		"The package installs cleanly and performs no harmful action.",
	}}
	formatter := &scriptedFormatter{
		plans: []planRecord{
			plan(planItem{Worker: "researcher", Task: "Check the registry reputation of requests-helper."},
				planItem{Worker: "finalizer", Task: "Summarize the findings."}),
			plan(planItem{Worker: "finalizer", Task: "Summarize the findings."}),
		},
		report: domain.FinalReport{
			Verdict:  domain.VerdictBenign,
			Behavior: "Declares a trivial setuptools package with no side effects.",
		},
	}

	g, err := NewGraph(reasoner, formatter, defaultWorkers("No adverse reputation found."))
	require.NoError(t, err)

	s := testState()
	require.NoError(t, g.Run(context.Background(), s))

	require.True(t, s.HasFinalReport())
	assert.Equal(t, domain.VerdictBenign, s.FinalReport.Verdict)
	assert.Equal(t, "The package installs cleanly and performs no harmful action.", s.FinalReportText)

	require.Len(t, s.History, 1)
	assert.Equal(t, domain.RoleResearcher, s.History[0].Role)
	assert.Equal(t, "No adverse reputation found.", s.History[0].Result)

	// supervisor, worker, supervisor, finalizer
	assert.Equal(t, domain.DefaultStepBudget-4, s.RemainingSteps)
	assert.Equal(t, domain.DefaultTaskBudget-2, s.RemainingTasks)
}

func TestRunStripsReasoningFromReportText(t *testing.T) {
	reasoner := &scriptedReasoner{outputs: []string{
		"<plan>finalize</plan>",
		"<think>let me weigh the evidence</think>Nothing malicious found.",
	}}
	formatter := &scriptedFormatter{
		plans:  []planRecord{plan(planItem{Worker: "finalizer", Task: "Summarize."})},
		report: domain.FinalReport{Verdict: domain.VerdictBenign, Behavior: "Nothing malicious."},
	}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""))
	require.NoError(t, err)

	s := testState()
	require.NoError(t, g.Run(context.Background(), s))
	assert.Equal(t, "Nothing malicious found.", s.FinalReportText)
}

func TestRunSeededZeroStepsFailsBeforeAnyCall(t *testing.T) {
	reasoner := &scriptedReasoner{}
	formatter := &scriptedFormatter{}
	g, err := NewGraph(reasoner, formatter, defaultWorkers(""))
	require.NoError(t, err)

	s := testState()
	s.RemainingSteps = 0

	err = g.Run(context.Background(), s)
	require.ErrorIs(t, err, domain.ErrBudgetExhausted)
	assert.Zero(t, reasoner.calls)
	assert.Zero(t, formatter.calls)
	assert.False(t, s.HasFinalReport())
}

func TestRunTruncatedWorkerReasoningYieldsDiagnostic(t *testing.T) {
	reasoner := &scriptedReasoner{outputs: []string{
		"<plan>investigate</plan>",
		"<plan>finalize</plan>",
		"Report text.",
	}}
	formatter := &scriptedFormatter{
		plans: []planRecord{
			plan(planItem{Worker: "deobfuscator", Task: "Decode the payload."},
				planItem{Worker: "finalizer", Task: "Summarize."}),
			plan(planItem{Worker: "finalizer", Task: "Summarize."}),
		},
		report: domain.FinalReport{Verdict: domain.VerdictBenign, Behavior: "n/a"},
	}

	truncated := func(string) (string, error) { return "<think>\nreasoning cut off", nil }
	workers := []ports.Worker{
		&stubWorker{role: domain.RoleResearcher, fn: truncated},
		&stubWorker{role: domain.RoleDeobfuscator, fn: truncated},
	}

	g, err := NewGraph(reasoner, formatter, workers)
	require.NoError(t, err)

	s := testState()
	require.NoError(t, g.Run(context.Background(), s))

	require.Len(t, s.History, 1)
	assert.Equal(t, sanitize.ReasoningTruncated, s.History[0].Result)
}

func TestRunEmptyPlanReplansWithoutConsumingTasks(t *testing.T) {
	reasoner := &scriptedReasoner{outputs: []string{
		"<plan></plan>",
		"<plan>finalize</plan>",
		"Report text.",
	}}
	formatter := &scriptedFormatter{
		plans: []planRecord{
			plan(), // empty: supervisor must loop back into planning
			plan(planItem{Worker: "finalizer", Task: "Summarize."}),
		},
		report: domain.FinalReport{Verdict: domain.VerdictBenign, Behavior: "n/a"},
	}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""))
	require.NoError(t, err)

	s := testState()
	require.NoError(t, g.Run(context.Background(), s))

	// Empty round consumed a step but no task.
	assert.Equal(t, domain.DefaultStepBudget-3, s.RemainingSteps)
	assert.Equal(t, domain.DefaultTaskBudget-1, s.RemainingTasks)
}

func TestRunEmptyPlanAfterCommitClearsStalePlan(t *testing.T) {
	reasoner := &scriptedReasoner{outputs: []string{
		"<plan>investigate</plan>",
		"<plan></plan>",
		"<plan>finalize</plan>",
		"Report text.",
	}}
	formatter := &scriptedFormatter{
		plans: []planRecord{
			plan(planItem{Worker: "researcher", Task: "Check reputation."},
				planItem{Worker: "finalizer", Task: "Summarize."}),
			plan(), // empty after a committed plan: stale steps must not re-run
			plan(planItem{Worker: "finalizer", Task: "Summarize."}),
		},
		report: domain.FinalReport{Verdict: domain.VerdictBenign, Behavior: "n/a"},
	}

	dispatches := 0
	once := func(string) (string, error) {
		dispatches++
		return "No adverse reputation found.", nil
	}
	workers := []ports.Worker{
		&stubWorker{role: domain.RoleResearcher, fn: once},
		&stubWorker{role: domain.RoleDeobfuscator, fn: once},
	}

	commits := 0
	hooks := domain.LifecycleHooks{
		OnPlanCommit: func(_ context.Context, _ *domain.PlanEvent) { commits++ },
	}

	g, err := NewGraph(reasoner, formatter, workers, WithHooks(hooks))
	require.NoError(t, err)

	s := testState()
	require.NoError(t, g.Run(context.Background(), s))

	// The empty round returns to planning instead of re-dispatching the
	// stale plan head.
	assert.Equal(t, 1, dispatches)
	require.Len(t, s.History, 1)
	assert.Equal(t, "No adverse reputation found.", s.History[0].Result)

	assert.Equal(t, 4, reasoner.calls)
	assert.Equal(t, 2, commits)
	// supervisor, worker, supervisor (empty), supervisor, finalizer
	assert.Equal(t, domain.DefaultStepBudget-5, s.RemainingSteps)
	assert.Equal(t, domain.DefaultTaskBudget-2, s.RemainingTasks)
}

func TestRunStepCeilingStopsEmptyPlanLoop(t *testing.T) {
	emptyForever := make([]planRecord, 16)
	outputs := make([]string, 16)
	for i := range outputs {
		outputs[i] = "<plan></plan>"
	}
	reasoner := &scriptedReasoner{outputs: outputs}
	formatter := &scriptedFormatter{plans: emptyForever}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""), WithStepCeiling(10))
	require.NoError(t, err)

	s := testState()
	s.RemainingSteps = 1000

	err = g.Run(context.Background(), s)
	require.ErrorIs(t, err, domain.ErrStepCeiling)
	assert.Equal(t, 10, reasoner.calls)
}

func TestRunTaskBudgetExhaustionForcesFinalization(t *testing.T) {
	reasoner := &scriptedReasoner{outputs: []string{"Forced summary text."}}
	formatter := &scriptedFormatter{
		report: domain.FinalReport{Verdict: domain.VerdictBenign, Behavior: "Findings so far."},
	}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""))
	require.NoError(t, err)

	s := testState()
	s.RemainingTasks = 0

	require.NoError(t, g.Run(context.Background(), s))
	require.True(t, s.HasFinalReport())
	assert.Equal(t, 0, s.RemainingTasks)
	// Only the finalizer's free-text round hit the reasoner; planning was
	// skipped entirely.
	assert.Equal(t, 1, reasoner.calls)
}

func TestFormatRetrySucceedsWithinBound(t *testing.T) {
	mismatch := fmt.Errorf("bad json: %w", domain.ErrSchemaMismatch)
	planErrs := make([]error, 4)
	for i := range planErrs {
		planErrs[i] = mismatch
	}

	reasoner := &scriptedReasoner{outputs: []string{"<plan>finalize</plan>", "Report text."}}
	formatter := &scriptedFormatter{
		planErr: planErrs,
		plans:   []planRecord{plan(planItem{Worker: "finalizer", Task: "Summarize."})},
		report:  domain.FinalReport{Verdict: domain.VerdictBenign, Behavior: "n/a"},
	}

	retries := 0
	hooks := domain.LifecycleHooks{
		OnFormatRetry: func(_ context.Context, _ *domain.RetryEvent) { retries++ },
	}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""), WithFormatRetries(5), WithHooks(hooks))
	require.NoError(t, err)

	s := testState()
	require.NoError(t, g.Run(context.Background(), s))
	assert.Equal(t, 4, retries)
}

func TestFormatRetryExhaustionIsFatal(t *testing.T) {
	mismatch := fmt.Errorf("bad json: %w", domain.ErrSchemaMismatch)
	planErrs := make([]error, 5)
	for i := range planErrs {
		planErrs[i] = mismatch
	}

	reasoner := &scriptedReasoner{outputs: []string{"<plan>anything</plan>"}}
	formatter := &scriptedFormatter{planErr: planErrs}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""), WithFormatRetries(5))
	require.NoError(t, err)

	s := testState()
	err = g.Run(context.Background(), s)
	require.ErrorIs(t, err, domain.ErrStructuredOutput)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.Equal(t, 5, formatter.calls)
}

func TestFormatTransportErrorIsFatalImmediately(t *testing.T) {
	transport := errors.New("connection refused")
	reasoner := &scriptedReasoner{outputs: []string{"<plan>anything</plan>"}}
	formatter := &scriptedFormatter{planErr: []error{transport}}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""))
	require.NoError(t, err)

	err = g.Run(context.Background(), testState())
	require.ErrorIs(t, err, transport)
	assert.Equal(t, 1, formatter.calls)
}

func TestUnknownWorkerNameIsRetriedAsSchemaMismatch(t *testing.T) {
	reasoner := &scriptedReasoner{outputs: []string{"<plan>finalize</plan>", "Report text."}}
	formatter := &scriptedFormatter{
		plans: []planRecord{
			plan(planItem{Worker: "exploit_developer", Task: "nope"}),
			plan(planItem{Worker: "finalizer", Task: "Summarize."}),
		},
		report: domain.FinalReport{Verdict: domain.VerdictBenign, Behavior: "n/a"},
	}

	g, err := NewGraph(reasoner, formatter, defaultWorkers(""))
	require.NoError(t, err)

	s := testState()
	require.NoError(t, g.Run(context.Background(), s))
	assert.Equal(t, 2, formatter.calls-1) // two plan attempts plus the report call
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := NewGraph(&scriptedReasoner{}, &scriptedFormatter{}, defaultWorkers(""))
	require.NoError(t, err)

	err = g.Run(ctx, testState())
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewGraphRejectsMissingWorker(t *testing.T) {
	_, err := NewGraph(&scriptedReasoner{}, &scriptedFormatter{}, []ports.Worker{
		&stubWorker{role: domain.RoleResearcher, fn: func(string) (string, error) { return "", nil }},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deobfuscator")
}

func TestTaskBriefCarriesCorpusAndPlan(t *testing.T) {
	s := testState()
	s.Plan = []domain.PlanStep{
		{Role: domain.RoleResearcher, Task: "Fetch https://example.com/payload"},
		{Role: domain.RoleFinalizer, Task: "Summarize."},
	}

	brief := taskBrief(s, s.Plan[0])
	assert.Contains(t, brief, "requests-helper")
	assert.Contains(t, brief, "```python:setup.py")
	assert.Contains(t, brief, "1. researcher: Fetch https://example.com/payload")
	assert.True(t, strings.Contains(brief, "**Step 1:** Fetch https://example.com/payload"))
}
