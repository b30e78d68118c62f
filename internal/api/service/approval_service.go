package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/settlement-service/internal/domain/approval"
	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/event"
	"github.com/finrecon/settlement-service/internal/domain/outbox"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

const requestEntityType = "approval_request"

// ApprovalServiceImpl implements the ApprovalService interface
type ApprovalServiceImpl struct {
	db           TxExecutor
	approvalRepo approval.Repository
	outboxRepo   outbox.Repository
	archive      audit.Archive
	listeners    []DecisionListener
	logger       *slog.Logger
}

// NewApprovalService creates a new maker-checker approval service
func NewApprovalService(
	logger *slog.Logger,
	db TxExecutor,
	approvalRepo approval.Repository,
	outboxRepo outbox.Repository,
	archive audit.Archive,
) *ApprovalServiceImpl {
	return &ApprovalServiceImpl{
		db:           db,
		approvalRepo: approvalRepo,
		outboxRepo:   outboxRepo,
		archive:      archive,
		logger:       logger,
	}
}

// RegisterDecisionListener adds a hook invoked inside every decision
// transaction. Not safe to call once requests are being served.
func (s *ApprovalServiceImpl) RegisterDecisionListener(listener DecisionListener) {
	s.listeners = append(s.listeners, listener)
}

// GetRequestByID retrieves an approval request by its ID
func (s *ApprovalServiceImpl) GetRequestByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	return s.approvalRepo.GetByID(ctx, id)
}

// ListRequestsByStatus retrieves a paginated list of requests with the given
// status plus the total count
func (s *ApprovalServiceImpl) ListRequestsByStatus(ctx context.Context, status approval.Status, page, perPage int) ([]*approval.Request, int64, error) {
	offset := (page - 1) * perPage

	requests, err := s.approvalRepo.ListByStatus(ctx, status, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.approvalRepo.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// Approve records an approval decision and runs the registered decision
// listeners in the same transaction
func (s *ApprovalServiceImpl) Approve(ctx context.Context, id uuid.UUID, approver shared.Actor, comment string) (*approval.Request, error) {
	request, err := s.decide(ctx, id, event.TypeApprovalApproved, approver, func(request *approval.Request) error {
		return request.Approve(approver, comment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Approval request approved",
		"request_id", request.ID.String(),
		"approver", approver.Name,
		"high_risk", request.HighRisk(),
	)
	return request, nil
}

// Reject records a rejection with its mandatory comment and runs the
// registered decision listeners in the same transaction
func (s *ApprovalServiceImpl) Reject(ctx context.Context, id uuid.UUID, actor shared.Actor, comment string) (*approval.Request, error) {
	request, err := s.decide(ctx, id, event.TypeApprovalRejected, actor, func(request *approval.Request) error {
		return request.Reject(actor, comment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Approval request rejected",
		"request_id", request.ID.String(),
		"actor", actor.Name,
	)
	return request, nil
}

// Cancel withdraws a pending request on behalf of its requestor and runs the
// registered decision listeners in the same transaction
func (s *ApprovalServiceImpl) Cancel(ctx context.Context, id uuid.UUID, actor shared.Actor) (*approval.Request, error) {
	request, err := s.decide(ctx, id, event.TypeApprovalCancelled, actor, func(request *approval.Request) error {
		return request.Cancel(actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Approval request cancelled",
		"request_id", request.ID.String(),
		"actor", actor.Name,
	)
	return request, nil
}

// decide loads the request, applies the decision, persists it, writes the
// transition event, and invokes the decision listeners, all in one
// transaction
func (s *ApprovalServiceImpl) decide(ctx context.Context, id uuid.UUID, eventType event.Type, actor shared.Actor, apply func(*approval.Request) error) (*approval.Request, error) {
	var request *approval.Request

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		approvalRepo := s.approvalRepo.WithTx(tx)
		outboxRepo := s.outboxRepo.WithTx(tx)

		var err error
		request, err = approvalRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := apply(request); err != nil {
			return err
		}
		if err := approvalRepo.Update(ctx, request); err != nil {
			return err
		}

		message, err := outbox.NewMessage(event.New(eventType, requestEntityType, request.ID, actor, map[string]string{
			"entity_type": request.Metadata.EntityType,
			"entity_id":   request.Metadata.EntityID.String(),
		}))
		if err != nil {
			return fmt.Errorf("failed to create outbox message: %w", err)
		}
		if err := outboxRepo.Create(ctx, message); err != nil {
			return err
		}

		for _, listener := range s.listeners {
			if err := listener(ctx, tx, request); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.archiveRequestTrail(ctx, request)
	return request, nil
}

func (s *ApprovalServiceImpl) archiveRequestTrail(ctx context.Context, request *approval.Request) {
	if err := s.archive.AppendHistory(ctx, requestEntityType, request.ID, request.History); err != nil {
		s.logger.Error("Failed to archive approval request history", "request_id", request.ID.String(), "error", err)
	}
	if err := s.archive.AppendLogs(ctx, requestEntityType, request.ID, request.Logs); err != nil {
		s.logger.Error("Failed to archive approval request logs", "request_id", request.ID.String(), "error", err)
	}
}
