package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines settlement run persistence operations. A run is stored
// together with its partner settlements; the summary is recomputed on load so
// the aggregation invariants hold regardless of what was written.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// List retrieves paginated runs, newest first
	List(ctx context.Context, limit, offset int) ([]*Run, error)
	Count(ctx context.Context) (int64, error)

	// Update persists the run and its partner settlements using optimistic
	// locking on Version. Returns ErrConcurrentModification when the stored
	// version has moved.
	Update(ctx context.Context, run *Run) error

	WithTx(tx pgx.Tx) Repository
}

// ErrRunNotFound indicates a missing settlement run
type ErrRunNotFound struct {
	RunID uuid.UUID
}

func (e ErrRunNotFound) Error() string {
	return "settlement run not found: " + e.RunID.String()
}

// ErrConcurrentModification indicates optimistic lock failure. The caller
// should re-fetch and re-issue the transition.
type ErrConcurrentModification struct {
	RunID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for settlement run: " + e.RunID.String()
}
