package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
	"github.com/finrecon/settlement-service/internal/platform/persistence"
)

// TransactionRepository implements settlement.TransactionSource against the
// run_transactions table populated by the ingestion pipeline
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction source
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) settlement.TransactionSource {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// TransactionsForRun loads all reconciled transactions assigned to the run,
// grouped by partner. Ordering by transaction date keeps the per-partner
// slices deterministic across calls.
func (r *TransactionRepository) TransactionsForRun(ctx context.Context, runID uuid.UUID) (map[uuid.UUID][]shared.Transaction, error) {
	query := `
		SELECT id, partner_id, transaction_date, type, amount, fee, currency
		FROM run_transactions
		WHERE run_id = $1
		ORDER BY transaction_date ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, runID)
	if err != nil {
		r.logger.Error("Failed to load run transactions", "run_id", runID.String(), "error", err)
		return nil, fmt.Errorf("failed to load run transactions: %w", err)
	}
	defer rows.Close()

	transactions := make(map[uuid.UUID][]shared.Transaction)
	for rows.Next() {
		var (
			txn       shared.Transaction
			partnerID uuid.UUID
		)
		err := rows.Scan(
			&txn.ID,
			&partnerID,
			&txn.TransactionDate,
			&txn.Type,
			&txn.Amount,
			&txn.Fee,
			&txn.Currency,
		)
		if err != nil {
			r.logger.Error("Failed to scan run transaction", "run_id", runID.String(), "error", err)
			return nil, fmt.Errorf("failed to scan run transaction: %w", err)
		}
		transactions[partnerID] = append(transactions[partnerID], txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over run transactions: %w", err)
	}

	return transactions, nil
}
