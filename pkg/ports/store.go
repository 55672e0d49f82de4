package ports

import (
	"context"

	"github.com/packhound/packhound/pkg/domain"
)

// RunStore persists run records. This enables the serving surfaces to hand
// out run IDs and answer status queries; the orchestration core itself never
// touches a store.
type RunStore interface {
	// Save persists the record under its ID, overwriting any previous value.
	Save(ctx context.Context, rec *domain.RunRecord) error

	// Load retrieves the record for a run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, id string) (*domain.RunRecord, error)

	// Delete removes the record for a run ID.
	Delete(ctx context.Context, id string) error

	// List returns the known run IDs.
	List(ctx context.Context) ([]string, error)
}
