package domain

import "time"

// RunStatus tracks the lifecycle of a stored run.
type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// RunRecord is the persisted view of one investigation, keyed by run ID.
// The embedded state carries the partial history even for failed runs, so
// callers can inspect how far the investigation got.
type RunRecord struct {
	ID          string         `json:"id"`
	PackageName string         `json:"package_name"`
	Status      RunStatus      `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	State       *AnalysisState `json:"state,omitempty"`
}
