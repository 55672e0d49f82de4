package orchestrator

import (
	"context"
	"fmt"

	"github.com/packhound/packhound/internal/sanitize"
	"github.com/packhound/packhound/pkg/domain"
)

// dispatchWorker hands the first plan entry to the matching worker and
// records exactly one history entry with the sanitized result. Worker
// transport failures are fatal for the run; unreliable but delivered output
// is repaired into a diagnostic instead.
func (g *Graph) dispatchWorker(ctx context.Context, s *domain.AnalysisState) (domain.Delta, error) {
	step := s.Plan[0]
	w, ok := g.workers[step.Role]
	if !ok {
		return domain.Delta{}, fmt.Errorf("no worker registered for role %q", step.Role)
	}

	raw, err := w.Execute(ctx, taskBrief(s, step))
	if err != nil {
		return domain.Delta{}, fmt.Errorf("worker %s: %w", step.Role, err)
	}

	result := sanitize.WorkerOutput(raw)
	g.workerEvent(ctx, step.Role, result != sanitize.Clean(raw))

	return domain.Delta{
		AppendHistory: []domain.HistoryEntry{{
			Role:   step.Role,
			Task:   step.Task,
			Result: result,
		}},
	}, nil
}
