package domain

import (
	"fmt"
	"strings"
)

// WorkerRole identifies one of the fixed specialist roles the supervisor can
// delegate to. The set is closed by design: dispatch happens through a static
// table, never an open registry.
type WorkerRole string

const (
	// RoleResearcher investigates external indicators: URLs, domains,
	// package registry reputation.
	RoleResearcher WorkerRole = "researcher"

	// RoleDeobfuscator decodes obfuscated payloads: base64, hex, compressed
	// or otherwise disguised strings.
	RoleDeobfuscator WorkerRole = "deobfuscator"

	// RoleFinalizer produces the final report. It performs no active
	// analysis and is terminal for the planning loop.
	RoleFinalizer WorkerRole = "finalizer"
)

// PlanStep is one (role, task) pair of the current plan.
type PlanStep struct {
	Role WorkerRole `json:"worker" jsonschema:"enum=researcher,enum=deobfuscator,enum=finalizer" jsonschema_description:"Name of the worker responsible for the task"`
	Task string     `json:"task" jsonschema_description:"Detailed description of the single task"`
}

// ParseWorkerRole maps a model-produced role name onto the closed role set.
// Planning models occasionally emit display names or legacy aliases, so the
// match is forgiving about case and decoration.
func ParseWorkerRole(s string) (WorkerRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case "researcher", "web_researcher":
		return RoleResearcher, nil
	case "deobfuscator":
		return RoleDeobfuscator, nil
	case "finalizer", "final_summarizer", "summarizer":
		return RoleFinalizer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}
