package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/packhound/packhound/internal/sanitize"
	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
	"github.com/packhound/packhound/pkg/schema"
)

// planRecord is the structured shape the format stage must produce.
type planRecord struct {
	Plan []planItem `json:"plan" jsonschema:"required,description=Ordered list of remaining analysis tasks"`
}

type planItem struct {
	Worker string `json:"worker" jsonschema:"required,enum=researcher,enum=deobfuscator,enum=finalizer,description=Name of the worker responsible for the task"`
	Task   string `json:"task" jsonschema:"required,description=Detailed description of the task"`
}

// synthesizePlan runs one reasoning round to produce an XML plan, then
// converts it into validated plan steps through the structured-output stage.
// Only schema mismatches are retried; transport failures surface immediately.
func (g *Graph) synthesizePlan(ctx context.Context, s *domain.AnalysisState) ([]domain.PlanStep, error) {
	var prompt string
	if len(s.History) == 0 {
		prompt = firstPlanningPrompt(s)
	} else {
		prompt = refreshPlanningPrompt(s)
	}

	raw, err := g.reasoner.Reason(ctx, ports.Prompt{System: supervisorSystem, User: prompt})
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	planXML := sanitize.Clean(raw)

	schemaStr, err := schema.For(planRecord{})
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	steps, err := g.formatPlan(ctx, formatPlanningPrompt(planXML, schemaStr))
	if err != nil {
		return nil, err
	}
	return steps, nil
}

// formatPlan drives the bounded retry loop around the formatter. The loop
// covers both JSON decode failures and unknown worker names, both of which
// the model can correct on a fresh attempt.
func (g *Graph) formatPlan(ctx context.Context, prompt string) ([]domain.PlanStep, error) {
	var lastErr error
	for attempt := 1; attempt <= g.formatRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rec planRecord
		err := g.formatter.Format(ctx, prompt, &rec)
		if err == nil {
			steps, convErr := toPlanSteps(rec)
			if convErr == nil {
				return steps, nil
			}
			err = convErr
		}
		if !errors.Is(err, domain.ErrSchemaMismatch) {
			return nil, fmt.Errorf("plan conversion: %w", err)
		}
		lastErr = err
		g.retryEvent(ctx, attempt)
	}
	return nil, fmt.Errorf("plan conversion failed after %d attempts: %w: %w",
		g.formatRetries, domain.ErrStructuredOutput, lastErr)
}

func toPlanSteps(rec planRecord) ([]domain.PlanStep, error) {
	steps := make([]domain.PlanStep, 0, len(rec.Plan))
	for _, item := range rec.Plan {
		role, err := domain.ParseWorkerRole(item.Worker)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrSchemaMismatch, err)
		}
		steps = append(steps, domain.PlanStep{Role: role, Task: item.Task})
	}
	return steps, nil
}
