package orchestrator

import (
	"context"
	"fmt"

	"github.com/packhound/packhound/pkg/domain"
)

// superviseOnce produces the next plan and the delta to commit. It never
// mutates the state; the graph applies the returned delta.
//
// With the task budget exhausted, planning is skipped entirely and a single
// forced finalization step is committed without consuming a task. An empty
// synthesized plan clears whatever plan was committed before, which sends
// the graph back into another planning round at the cost of one step.
func (g *Graph) superviseOnce(ctx context.Context, s *domain.AnalysisState) (domain.Delta, error) {
	if s.RemainingTasks <= 0 {
		g.logger.Warn("task budget exhausted, forcing finalization", "package", s.PackageName)
		return domain.Delta{
			PlanReplaced: true,
			ReplacePlan: []domain.PlanStep{{
				Role: domain.RoleFinalizer,
				Task: "Summarize all findings collected so far into the final security assessment report.",
			}},
		}, nil
	}

	steps, err := g.synthesizePlan(ctx, s)
	if err != nil {
		return domain.Delta{}, err
	}
	if len(steps) == 0 {
		g.logger.Warn("supervisor produced an empty plan, replanning", "package", s.PackageName)
		return domain.Delta{PlanReplaced: true}, nil
	}

	return domain.Delta{
		PlanReplaced: true,
		ReplacePlan:  steps,
		TasksUsed:    1,
		AppendConversation: []domain.Message{{
			Role:    "assistant",
			Content: fmt.Sprintf("Committed a plan with %d steps.", len(steps)),
		}},
	}, nil
}
