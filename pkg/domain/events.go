package domain

import (
	"context"
	"time"
)

// EventType defines the category of a run event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventPlanCommit   EventType = "plan_commit"
	EventWorkerReturn EventType = "worker_return"
	EventFormatRetry  EventType = "format_retry"
	EventRunFinish    EventType = "run_finish"
)

// RunOutcome classifies how a run ended.
type RunOutcome string

const (
	OutcomeComplete        RunOutcome = "complete"
	OutcomeBudgetExhausted RunOutcome = "budget_exhausted"
	OutcomeStepCeiling     RunOutcome = "step_ceiling"
	OutcomeFailed          RunOutcome = "failed"
)

// EventBase contains fields common to all events.
type EventBase struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	PackageName string    `json:"package_name"`
}

// NodeEvent represents entry to or exit from a graph node.
type NodeEvent struct {
	EventBase
	Node string `json:"node"`
}

// PlanEvent represents a committed planning round.
type PlanEvent struct {
	EventBase
	Steps          int `json:"steps"`
	RemainingTasks int `json:"remaining_tasks"`
}

// WorkerEvent represents one completed worker dispatch.
type WorkerEvent struct {
	EventBase
	Role      WorkerRole `json:"role"`
	Truncated bool       `json:"truncated"` // result was replaced by a truncation diagnostic
}

// RetryEvent represents one failed structured-output attempt.
type RetryEvent struct {
	EventBase
	Attempt int `json:"attempt"`
}

// RunEvent represents the end of a run.
type RunEvent struct {
	EventBase
	Outcome  RunOutcome    `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for graph observability. Any field may be
// nil. Hooks run synchronously on the graph goroutine and must be cheap.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnPlanCommit   func(context.Context, *PlanEvent)
	OnWorkerReturn func(context.Context, *WorkerEvent)
	OnFormatRetry  func(context.Context, *RetryEvent)
	OnRunFinish    func(context.Context, *RunEvent)
}
