package approval

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines approval request persistence operations
type Repository interface {
	Create(ctx context.Context, request *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// ListByStatus retrieves paginated requests with the given status,
	// newest first
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Request, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)

	// Update persists the request using optimistic locking on Version.
	// Returns ErrConcurrentModification when the stored version has moved.
	Update(ctx context.Context, request *Request) error

	WithTx(tx pgx.Tx) Repository
}

// ErrRequestNotFound indicates a missing approval request
type ErrRequestNotFound struct {
	RequestID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "approval request not found: " + e.RequestID.String()
}

// ErrConcurrentModification indicates optimistic lock failure. The caller
// should re-fetch and re-issue the transition.
type ErrConcurrentModification struct {
	RequestID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for approval request: " + e.RequestID.String()
}
