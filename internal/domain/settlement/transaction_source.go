package settlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// TransactionSource supplies the reconciled transactions feeding a run's
// aggregation, keyed by partner. The ingestion collaborator owns the
// transactions; this service only reads them.
type TransactionSource interface {
	TransactionsForRun(ctx context.Context, runID uuid.UUID) (map[uuid.UUID][]shared.Transaction, error)
}
