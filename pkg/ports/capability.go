package ports

import (
	"context"

	"github.com/packhound/packhound/pkg/domain"
)

// Prompt is a system-instruction plus user-message pair for a reasoning
// model.
type Prompt struct {
	System string
	User   string
}

// Reasoner is a free-text reasoning capability. Invocations are atomic and
// blocking; failures (timeouts, provider errors) are not retried by the core
// and surface as run-fatal.
type Reasoner interface {
	Reason(ctx context.Context, p Prompt) (string, error)
}

// Formatter is a structured-output capability: it renders free text into a
// value matching the JSON schema of out. A response that cannot be decoded
// into out must be reported as an error matching domain.ErrSchemaMismatch,
// which the core retries up to its ceiling. Transport failures are fatal.
type Formatter interface {
	Format(ctx context.Context, prompt string, out any) error
}

// Worker is one specialist capability. Its internals (tools, sub-reasoning,
// its own transcript) are opaque; the core consumes only the final answer
// text.
type Worker interface {
	Role() domain.WorkerRole
	Execute(ctx context.Context, brief string) (string, error)
}
