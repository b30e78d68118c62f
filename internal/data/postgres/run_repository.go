// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the settlement service.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
	"github.com/finrecon/settlement-service/internal/platform/persistence"
)

// RunRepository implements the settlement.Repository interface for PostgreSQL.
// A run row carries its audit trail as JSONB; partner settlements live in
// their own table keyed by (run_id, partner_id).
type RunRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewRunRepository creates a new PostgreSQL settlement run repository
func NewRunRepository(logger *slog.Logger, db *persistence.PostgresDB) settlement.Repository {
	return &RunRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls
func (r *RunRepository) WithTx(tx pgx.Tx) settlement.Repository {
	return &RunRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new settlement run and its partner settlements
func (r *RunRepository) Create(ctx context.Context, run *settlement.Run) error {
	history, logs, err := marshalTrail(&run.Trail)
	if err != nil {
		return fmt.Errorf("failed to marshal run audit trail: %w", err)
	}

	query := `
		INSERT INTO settlement_runs (
			id, run_number, period_start, period_end, status, currency, total_amount,
			payment_method, created_by_id, created_by_name, approved_by_id, approved_by_name,
			approval_request_id, completed_at, failure_reason, history, logs, version,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	approvedByID, approvedByName := actorColumns(run.ApprovedBy)
	_, err = r.querier.Exec(ctx, query,
		run.ID,
		run.RunNumber,
		run.PeriodStart,
		run.PeriodEnd,
		run.Status,
		run.Currency,
		run.TotalAmount,
		run.PaymentMethod,
		run.CreatedBy.ID,
		run.CreatedBy.Name,
		approvedByID,
		approvedByName,
		run.ApprovalRequestID,
		run.CompletedAt,
		run.FailureReason,
		history,
		logs,
		run.Version,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create settlement run", "run_number", run.RunNumber, "error", err)
		return fmt.Errorf("failed to create settlement run: %w", err)
	}

	if err := r.insertBreakdown(ctx, run); err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a settlement run with its partner settlements. The run
// summary is recomputed from the loaded breakdown rather than trusted from
// storage.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*settlement.Run, error) {
	query := selectRunQuery + ` WHERE id = $1`

	run, err := r.scanRun(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settlement.ErrRunNotFound{RunID: id}
		}
		r.logger.Error("Failed to get settlement run", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get settlement run: %w", err)
	}

	if err := r.loadBreakdown(ctx, run); err != nil {
		return nil, err
	}

	return run, nil
}

// List retrieves paginated settlement runs, newest first
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*settlement.Run, error) {
	query := selectRunQuery + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list settlement runs", "error", err)
		return nil, fmt.Errorf("failed to list settlement runs: %w", err)
	}
	defer rows.Close()

	var runs []*settlement.Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			r.logger.Error("Failed to scan settlement run", "error", err)
			return nil, fmt.Errorf("failed to scan settlement run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over settlement runs: %w", err)
	}

	for _, run := range runs {
		if err := r.loadBreakdown(ctx, run); err != nil {
			return nil, err
		}
	}

	return runs, nil
}

// Count returns the total number of settlement runs
func (r *RunRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM settlement_runs`).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count settlement runs", "error", err)
		return 0, fmt.Errorf("failed to count settlement runs: %w", err)
	}
	return count, nil
}

// Update persists the run and rewrites its partner settlements using
// optimistic locking on Version
func (r *RunRepository) Update(ctx context.Context, run *settlement.Run) error {
	history, logs, err := marshalTrail(&run.Trail)
	if err != nil {
		return fmt.Errorf("failed to marshal run audit trail: %w", err)
	}

	query := `
		UPDATE settlement_runs
		SET status = $1, total_amount = $2, approved_by_id = $3, approved_by_name = $4,
			approval_request_id = $5, completed_at = $6, failure_reason = $7,
			history = $8, logs = $9, version = $10, updated_at = $11
		WHERE id = $12 AND version = $13
	`

	approvedByID, approvedByName := actorColumns(run.ApprovedBy)
	result, err := r.querier.Exec(ctx, query,
		run.Status,
		run.TotalAmount,
		approvedByID,
		approvedByName,
		run.ApprovalRequestID,
		run.CompletedAt,
		run.FailureReason,
		history,
		logs,
		run.Version,
		run.UpdatedAt,
		run.ID,
		run.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update settlement run", "id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to update settlement run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return settlement.ErrConcurrentModification{RunID: run.ID}
	}

	if _, err := r.querier.Exec(ctx, `DELETE FROM partner_settlements WHERE run_id = $1`, run.ID); err != nil {
		r.logger.Error("Failed to clear partner settlements", "run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to clear partner settlements: %w", err)
	}

	return r.insertBreakdown(ctx, run)
}

const selectRunQuery = `
	SELECT id, run_number, period_start, period_end, status, currency,
		payment_method, created_by_id, created_by_name, approved_by_id, approved_by_name,
		approval_request_id, completed_at, failure_reason, history, logs, version,
		created_at, updated_at
	FROM settlement_runs`

func (r *RunRepository) scanRun(row pgx.Row) (*settlement.Run, error) {
	var (
		run            settlement.Run
		approvedByID   *uuid.UUID
		approvedByName *string
		history        []byte
		logs           []byte
	)

	err := row.Scan(
		&run.ID,
		&run.RunNumber,
		&run.PeriodStart,
		&run.PeriodEnd,
		&run.Status,
		&run.Currency,
		&run.PaymentMethod,
		&run.CreatedBy.ID,
		&run.CreatedBy.Name,
		&approvedByID,
		&approvedByName,
		&run.ApprovalRequestID,
		&run.CompletedAt,
		&run.FailureReason,
		&history,
		&logs,
		&run.Version,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedByID != nil {
		run.ApprovedBy = &shared.Actor{ID: *approvedByID}
		if approvedByName != nil {
			run.ApprovedBy.Name = *approvedByName
		}
	}

	if err := unmarshalTrail(history, logs, &run.Trail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run audit trail: %w", err)
	}

	return &run, nil
}

func (r *RunRepository) insertBreakdown(ctx context.Context, run *settlement.Run) error {
	query := `
		INSERT INTO partner_settlements (
			run_id, partner_id, partner_name, partner_type, currency,
			gross_amount, fees, adjustments, net_amount, transaction_count,
			status, payment_method, payment_reference, paid_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for _, ps := range run.Breakdown {
		var (
			paymentMethod    *shared.PaymentMethod
			paymentReference *string
			paidAt           *time.Time
		)
		if ps.PaymentDetails != nil {
			paymentMethod = &ps.PaymentDetails.Method
			paymentReference = &ps.PaymentDetails.Reference
			paidAt = &ps.PaymentDetails.PaidAt
		}

		_, err := r.querier.Exec(ctx, query,
			ps.RunID,
			ps.PartnerID,
			ps.PartnerName,
			ps.PartnerType,
			ps.Currency,
			ps.GrossAmount,
			ps.Fees,
			ps.Adjustments,
			ps.NetAmount,
			ps.TransactionCount,
			ps.Status,
			paymentMethod,
			paymentReference,
			paidAt,
		)
		if err != nil {
			r.logger.Error("Failed to insert partner settlement",
				"run_id", ps.RunID.String(),
				"partner_id", ps.PartnerID.String(),
				"error", err,
			)
			return fmt.Errorf("failed to insert partner settlement: %w", err)
		}
	}

	return nil
}

func (r *RunRepository) loadBreakdown(ctx context.Context, run *settlement.Run) error {
	query := `
		SELECT run_id, partner_id, partner_name, partner_type, currency,
			gross_amount, fees, adjustments, net_amount, transaction_count,
			status, payment_method, payment_reference, paid_at
		FROM partner_settlements
		WHERE run_id = $1
		ORDER BY partner_name ASC, partner_id ASC
	`

	rows, err := r.querier.Query(ctx, query, run.ID)
	if err != nil {
		r.logger.Error("Failed to load partner settlements", "run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to load partner settlements: %w", err)
	}
	defer rows.Close()

	var breakdown []*settlement.PartnerSettlement
	for rows.Next() {
		var (
			ps               settlement.PartnerSettlement
			paymentMethod    *shared.PaymentMethod
			paymentReference *string
			paidAt           *time.Time
		)
		err := rows.Scan(
			&ps.RunID,
			&ps.PartnerID,
			&ps.PartnerName,
			&ps.PartnerType,
			&ps.Currency,
			&ps.GrossAmount,
			&ps.Fees,
			&ps.Adjustments,
			&ps.NetAmount,
			&ps.TransactionCount,
			&ps.Status,
			&paymentMethod,
			&paymentReference,
			&paidAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan partner settlement: %w", err)
		}
		if paymentMethod != nil && paymentReference != nil && paidAt != nil {
			ps.PaymentDetails = &settlement.PaymentDetails{
				Method:    *paymentMethod,
				Reference: *paymentReference,
				PaidAt:    *paidAt,
			}
		}
		breakdown = append(breakdown, &ps)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over partner settlements: %w", err)
	}

	run.Breakdown = breakdown
	run.Summary = settlement.Summarize(breakdown)
	run.TotalAmount = run.Summary.TotalNetAmount
	return nil
}

// marshalTrail serializes an audit trail for JSONB storage
func marshalTrail(trail *audit.Trail) ([]byte, []byte, error) {
	history, err := json.Marshal(trail.History)
	if err != nil {
		return nil, nil, err
	}
	logs, err := json.Marshal(trail.Logs)
	if err != nil {
		return nil, nil, err
	}
	return history, logs, nil
}

func unmarshalTrail(history, logs []byte, trail *audit.Trail) error {
	if len(history) > 0 {
		if err := json.Unmarshal(history, &trail.History); err != nil {
			return err
		}
	}
	if len(logs) > 0 {
		if err := json.Unmarshal(logs, &trail.Logs); err != nil {
			return err
		}
	}
	return nil
}

func actorColumns(actor *shared.Actor) (*uuid.UUID, *string) {
	if actor == nil {
		return nil, nil
	}
	return &actor.ID, &actor.Name
}
