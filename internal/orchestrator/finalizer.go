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

// finalize produces the free-text report and its structured counterpart in a
// single delta, so the run can never end with one half of the report set.
func (g *Graph) finalize(ctx context.Context, s *domain.AnalysisState) (domain.Delta, error) {
	raw, err := g.reasoner.Reason(ctx, ports.Prompt{
		System: supervisorSystem,
		User:   finalReportPrompt(s, summarizationPlan(s)),
	})
	if err != nil {
		return domain.Delta{}, fmt.Errorf("finalization: %w", err)
	}
	reportText := sanitize.Clean(raw)

	schemaStr, err := schema.For(domain.FinalReport{})
	if err != nil {
		return domain.Delta{}, fmt.Errorf("finalization: %w", err)
	}

	report, err := g.formatReport(ctx, formatReportPrompt(reportText, schemaStr))
	if err != nil {
		return domain.Delta{}, err
	}

	return domain.Delta{
		Report: &domain.ReportDelta{Text: reportText, Structured: report},
	}, nil
}

func (g *Graph) formatReport(ctx context.Context, prompt string) (*domain.FinalReport, error) {
	var lastErr error
	for attempt := 1; attempt <= g.formatRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var report domain.FinalReport
		err := g.formatter.Format(ctx, prompt, &report)
		if err == nil {
			if err = report.Validate(); err == nil {
				return &report, nil
			}
		}
		if !errors.Is(err, domain.ErrSchemaMismatch) {
			return nil, fmt.Errorf("report conversion: %w", err)
		}
		lastErr = err
		g.retryEvent(ctx, attempt)
	}
	return nil, fmt.Errorf("report conversion failed after %d attempts: %w: %w",
		g.formatRetries, domain.ErrStructuredOutput, lastErr)
}
