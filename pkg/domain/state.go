package domain

import (
	"fmt"
	"strings"
)

// Default budgets for a fresh investigation.
const (
	DefaultStepBudget = 25
	DefaultTaskBudget = 15
)

// historyDelimiter separates rendered history blocks. A full line of dashes
// is used so worker prose cannot collide with it.
const historyDelimiter = "\n---------------\n"

// SourceUnit is one file of the corpus under investigation.
type SourceUnit struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

// Message is a single exchange with the supervisor or finalizer model.
// Worker transcripts are private to the worker and never recorded here.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// HistoryEntry is the durable record of one completed worker task.
type HistoryEntry struct {
	Role   WorkerRole `json:"role"`
	Task   string     `json:"task"`
	Result string     `json:"result"`
}

// AnalysisState is the single mutable record threaded through every node of
// an investigation. The graph owns it: nodes receive it read-only and return
// a Delta describing their changes.
type AnalysisState struct {
	// Immutable run context, set at creation.
	PackageName string       `json:"package_name"`
	Today       string       `json:"today"`
	SourceUnits []SourceUnit `json:"source_units"`

	// Conversation records the top-level supervisor/finalizer exchanges.
	// Append-only.
	Conversation []Message `json:"conversation,omitempty"`

	// Plan is the current batch of undispatched work. Replaced wholesale on
	// every planning round, never partially mutated.
	Plan []PlanStep `json:"plan"`

	// History is the append-only ledger of completed (role, task, result)
	// records. Entries are never removed or reordered.
	History []HistoryEntry `json:"history"`

	// Final report pair. FinalReport is non-nil exactly when FinalReportText
	// is non-empty; both are set by a single delta from the finalizer.
	FinalReportText string       `json:"final_report_text,omitempty"`
	FinalReport     *FinalReport `json:"final_report,omitempty"`

	// RemainingSteps is decremented once per node activation. Zero is a hard
	// stop for the run.
	RemainingSteps int `json:"remaining_steps"`

	// RemainingTasks bounds planning rounds. Decremented once per committed
	// plan; zero degrades the next planning decision to finalize-only.
	RemainingTasks int `json:"remaining_tasks"`
}

// NewAnalysisState creates a fresh state with default budgets.
// The source unit slice is copied so the caller cannot alias the corpus.
func NewAnalysisState(packageName, today string, units []SourceUnit) *AnalysisState {
	copied := make([]SourceUnit, len(units))
	copy(copied, units)
	return &AnalysisState{
		PackageName:    packageName,
		Today:          today,
		SourceUnits:    copied,
		RemainingSteps: DefaultStepBudget,
		RemainingTasks: DefaultTaskBudget,
	}
}

// PlanSummary renders the current plan as a numbered list, one step per line.
// Pure: computed from the current field values on every call.
func (s *AnalysisState) PlanSummary() string {
	var b strings.Builder
	for i, step := range s.Plan {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s: %s", i+1, step.Role, step.Task)
	}
	return b.String()
}

// HistorySummary renders the completed work as delimited blocks in append
// order.
func (s *AnalysisState) HistorySummary() string {
	if len(s.History) == 0 {
		return ""
	}
	blocks := make([]string, len(s.History))
	for i, h := range s.History {
		blocks[i] = fmt.Sprintf("## Worker\n\n%s\n\n## Task\n\n%s\n\n## Result\n\n%s", h.Role, h.Task, h.Result)
	}
	return historyDelimiter + strings.Join(blocks, historyDelimiter) + historyDelimiter
}

// SourceSummary renders the corpus as labeled fenced code blocks in their
// original order.
func (s *AnalysisState) SourceSummary() string {
	blocks := make([]string, len(s.SourceUnits))
	for i, u := range s.SourceUnits {
		blocks[i] = fmt.Sprintf("```python:%s\n%s\n```", u.Filename, u.Code)
	}
	return strings.Join(blocks, "\n\n")
}

// HasFinalReport reports whether the finalizer has produced the report pair.
func (s *AnalysisState) HasFinalReport() bool {
	return s.FinalReport != nil
}
