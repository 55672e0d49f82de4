package domain

import "errors"

// ErrBudgetExhausted is returned when RemainingSteps reaches zero. It is
// reported distinctly so callers can tell "ran out of budget" apart from
// collaborator failures.
var ErrBudgetExhausted = errors.New("step budget exhausted")

// ErrStepCeiling is returned when the graph-level activation ceiling is hit.
// This is the backstop against pathological planning loops.
var ErrStepCeiling = errors.New("graph step ceiling reached")

// ErrSchemaMismatch marks a structured-output response that failed schema
// validation. This error kind is retryable.
var ErrSchemaMismatch = errors.New("structured output does not match schema")

// ErrStructuredOutput is returned when the structured-output retry ceiling is
// exhausted without a schema-valid response.
var ErrStructuredOutput = errors.New("structured output attempts exhausted")

// ErrUnknownRole is returned for a worker role outside the closed role set.
var ErrUnknownRole = errors.New("unknown worker role")

// ErrReportAlreadySet guards the set-exactly-once contract of the final
// report pair.
var ErrReportAlreadySet = errors.New("final report already set")

// ErrRunNotFound is returned when a run ID cannot be found in a store.
var ErrRunNotFound = errors.New("run not found")
