// Package domain contains the core types of an investigation: the shared
// analysis state, the closed worker-role set, the plan and history records,
// the final verdict schema, and the delta values through which graph nodes
// mutate state. It has no dependencies on adapters or capabilities.
package domain
