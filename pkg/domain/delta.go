package domain

// ReportDelta carries the final report pair. Both fields are applied
// together or not at all.
type ReportDelta struct {
	Text       string
	Structured *FinalReport
}

// Delta is the only way a node mutates AnalysisState. Each node returns one
// Delta and the graph applies it, which keeps a single writer active at a
// time without relying on any framework's propagation rules.
//
// Fields compose: a supervisor delta may replace the plan, consume a task
// and append conversation messages in one application.
type Delta struct {
	// PlanReplaced marks ReplacePlan as intentional, allowing a wholesale
	// replacement with an empty batch to be distinguished from "no change".
	PlanReplaced bool
	ReplacePlan  []PlanStep

	// TasksUsed is subtracted from RemainingTasks, clamped at zero.
	TasksUsed int

	AppendHistory      []HistoryEntry
	AppendConversation []Message

	// Report sets the final report pair atomically. Setting it twice over the
	// lifetime of a state is an error.
	Report *ReportDelta
}

// Apply mutates s according to d. History and conversation are append-only;
// the plan is replaced wholesale; the report pair is set at most once.
func (s *AnalysisState) Apply(d Delta) error {
	if d.Report != nil {
		if s.FinalReport != nil || s.FinalReportText != "" {
			return ErrReportAlreadySet
		}
		if d.Report.Structured == nil {
			// The structured record is derived from the text; neither may
			// exist without the other.
			return ErrSchemaMismatch
		}
	}

	if d.PlanReplaced {
		s.Plan = append([]PlanStep(nil), d.ReplacePlan...)
	}
	if d.TasksUsed > 0 {
		s.RemainingTasks -= d.TasksUsed
		if s.RemainingTasks < 0 {
			s.RemainingTasks = 0
		}
	}
	s.History = append(s.History, d.AppendHistory...)
	s.Conversation = append(s.Conversation, d.AppendConversation...)
	if d.Report != nil {
		s.FinalReportText = d.Report.Text
		s.FinalReport = d.Report.Structured
	}
	return nil
}
