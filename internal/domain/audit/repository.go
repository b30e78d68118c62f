package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Archive is the append-only compliance store for audit history. Entries are
// never updated or deleted once written; replaying an append with an already
// archived entry ID is a no-op so archival stays idempotent.
type Archive interface {
	AppendHistory(ctx context.Context, entityType string, entityID uuid.UUID, entries []HistoryEntry) error
	AppendLogs(ctx context.Context, entityType string, entityID uuid.UUID, entries []LogEntry) error

	// HistoryForEntity returns the archived history in canonical audit
	// order: ascending by timestamp, ties broken by entry ID
	HistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]HistoryEntry, error)
	LogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]LogEntry, error)
}

// ErrEntityNotArchived indicates no archived entries exist for an entity
type ErrEntityNotArchived struct {
	EntityType string
	EntityID   uuid.UUID
}

func (e ErrEntityNotArchived) Error() string {
	return fmt.Sprintf("no archived audit entries for %s %s", e.EntityType, e.EntityID)
}
