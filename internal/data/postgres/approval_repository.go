package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/settlement-service/internal/domain/approval"
	"github.com/finrecon/settlement-service/internal/domain/shared"
	"github.com/finrecon/settlement-service/internal/platform/persistence"
)

// ApprovalRepository implements the approval.Repository interface for PostgreSQL
type ApprovalRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewApprovalRepository creates a new PostgreSQL approval request repository
func NewApprovalRepository(logger *slog.Logger, db *persistence.PostgresDB) approval.Repository {
	return &ApprovalRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *ApprovalRepository) WithTx(tx pgx.Tx) approval.Repository {
	return &ApprovalRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new approval request
func (r *ApprovalRepository) Create(ctx context.Context, request *approval.Request) error {
	history, logs, err := marshalTrail(&request.Trail)
	if err != nil {
		return fmt.Errorf("failed to marshal approval request audit trail: %w", err)
	}

	changes, err := marshalChanges(request.Changes)
	if err != nil {
		return fmt.Errorf("failed to marshal approval request changes: %w", err)
	}

	query := `
		INSERT INTO approval_requests (
			id, type, status, priority, requestor_id, requestor_name,
			approver_id, approver_name, payload, changes, entity_type, entity_id,
			risk_score, amount, decision_comment, approved_at, rejected_at, cancelled_at,
			history, logs, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	approverID, approverName := actorColumns(request.Approver)
	_, err = r.querier.Exec(ctx, query,
		request.ID,
		request.Type,
		request.Status,
		request.Priority,
		request.Requestor.ID,
		request.Requestor.Name,
		approverID,
		approverName,
		[]byte(request.Payload),
		changes,
		request.Metadata.EntityType,
		request.Metadata.EntityID,
		request.Metadata.RiskScore,
		request.Metadata.Amount,
		request.DecisionComment,
		request.ApprovedAt,
		request.RejectedAt,
		request.CancelledAt,
		history,
		logs,
		request.Version,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval request", "id", request.ID.String(), "error", err)
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	return nil
}

// GetByID retrieves an approval request by its ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	query := selectApprovalQuery + ` WHERE id = $1`

	request, err := r.scanRequest(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, approval.ErrRequestNotFound{RequestID: id}
		}
		r.logger.Error("Failed to get approval request", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}

	return request, nil
}

// ListByStatus retrieves paginated approval requests with the given status,
// newest first
func (r *ApprovalRepository) ListByStatus(ctx context.Context, status approval.Status, limit, offset int) ([]*approval.Request, error) {
	query := selectApprovalQuery + ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.querier.Query(ctx, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list approval requests", "status", string(status), "error", err)
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	defer rows.Close()

	var requests []*approval.Request
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			r.logger.Error("Failed to scan approval request", "error", err)
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over approval requests: %w", err)
	}

	return requests, nil
}

// CountByStatus returns the number of approval requests with the given status
func (r *ApprovalRepository) CountByStatus(ctx context.Context, status approval.Status) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM approval_requests WHERE status = $1`, status).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count approval requests", "status", string(status), "error", err)
		return 0, fmt.Errorf("failed to count approval requests: %w", err)
	}
	return count, nil
}

// Update persists the request using optimistic locking on Version
func (r *ApprovalRepository) Update(ctx context.Context, request *approval.Request) error {
	history, logs, err := marshalTrail(&request.Trail)
	if err != nil {
		return fmt.Errorf("failed to marshal approval request audit trail: %w", err)
	}

	query := `
		UPDATE approval_requests
		SET status = $1, approver_id = $2, approver_name = $3, decision_comment = $4,
			approved_at = $5, rejected_at = $6, cancelled_at = $7,
			history = $8, logs = $9, version = $10, updated_at = $11
		WHERE id = $12 AND version = $13
	`

	approverID, approverName := actorColumns(request.Approver)
	result, err := r.querier.Exec(ctx, query,
		request.Status,
		approverID,
		approverName,
		request.DecisionComment,
		request.ApprovedAt,
		request.RejectedAt,
		request.CancelledAt,
		history,
		logs,
		request.Version,
		request.UpdatedAt,
		request.ID,
		request.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update approval request", "id", request.ID.String(), "error", err)
		return fmt.Errorf("failed to update approval request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return approval.ErrConcurrentModification{RequestID: request.ID}
	}

	return nil
}

const selectApprovalQuery = `
	SELECT id, type, status, priority, requestor_id, requestor_name,
		approver_id, approver_name, payload, changes, entity_type, entity_id,
		risk_score, amount, decision_comment, approved_at, rejected_at, cancelled_at,
		history, logs, version, created_at, updated_at
	FROM approval_requests`

func (r *ApprovalRepository) scanRequest(row pgx.Row) (*approval.Request, error) {
	var (
		request      approval.Request
		approverID   *uuid.UUID
		approverName *string
		payload      []byte
		changes      []byte
		history      []byte
		logs         []byte
	)

	err := row.Scan(
		&request.ID,
		&request.Type,
		&request.Status,
		&request.Priority,
		&request.Requestor.ID,
		&request.Requestor.Name,
		&approverID,
		&approverName,
		&payload,
		&changes,
		&request.Metadata.EntityType,
		&request.Metadata.EntityID,
		&request.Metadata.RiskScore,
		&request.Metadata.Amount,
		&request.DecisionComment,
		&request.ApprovedAt,
		&request.RejectedAt,
		&request.CancelledAt,
		&history,
		&logs,
		&request.Version,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approverID != nil {
		request.Approver = &shared.Actor{ID: *approverID}
		if approverName != nil {
			request.Approver.Name = *approverName
		}
	}
	request.Payload = payload
	if len(changes) > 0 {
		var cs approval.ChangeSet
		if err := json.Unmarshal(changes, &cs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal approval request changes: %w", err)
		}
		request.Changes = &cs
	}

	if err := unmarshalTrail(history, logs, &request.Trail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval request audit trail: %w", err)
	}

	return &request, nil
}

func marshalChanges(changes *approval.ChangeSet) ([]byte, error) {
	if changes == nil {
		return nil, nil
	}
	return json.Marshal(changes)
}
