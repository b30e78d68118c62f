package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/settlement-service/internal/domain/approval"
	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/event"
	"github.com/finrecon/settlement-service/internal/domain/outbox"
	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
	"github.com/finrecon/settlement-service/internal/platform/messaging/producers"
	"github.com/finrecon/settlement-service/internal/platform/persistence"
)

const runEntityType = "settlement_run"

// Priority thresholds in minor units
const (
	criticalAmountThreshold = 100_000_00
	highAmountThreshold     = 10_000_00
	mediumAmountThreshold   = 1_000_00
)

// TxExecutor runs a function inside a database transaction
type TxExecutor interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ TxExecutor = (*persistence.PostgresDB)(nil)

// RunServiceImpl implements the RunService interface
type RunServiceImpl struct {
	db           TxExecutor
	runRepo      settlement.Repository
	approvalRepo approval.Repository
	outboxRepo   outbox.Repository
	producer     producers.MessagePublisher
	archive      audit.Archive
	logger       *slog.Logger
}

// NewRunService creates a new settlement run service
func NewRunService(
	logger *slog.Logger,
	db TxExecutor,
	runRepo settlement.Repository,
	approvalRepo approval.Repository,
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	archive audit.Archive,
) RunService {
	return &RunServiceImpl{
		db:           db,
		runRepo:      runRepo,
		approvalRepo: approvalRepo,
		outboxRepo:   outboxRepo,
		producer:     producer,
		archive:      archive,
		logger:       logger,
	}
}

// CreateRun creates a new draft settlement run
func (s *RunServiceImpl) CreateRun(ctx context.Context, params CreateRunParams) (*settlement.Run, error) {
	run, err := settlement.NewRun(
		params.RunNumber,
		params.PeriodStart,
		params.PeriodEnd,
		params.Currency,
		params.PaymentMethod,
		params.CreatedBy,
		params.Partners,
	)
	if err != nil {
		return nil, err
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("Settlement run created",
		"run_id", run.ID.String(),
		"run_number", run.RunNumber,
		"partner_count", len(run.Breakdown),
	)
	s.archiveRunTrail(ctx, run)
	return run, nil
}

// GetRunByID retrieves a settlement run by its ID
func (s *RunServiceImpl) GetRunByID(ctx context.Context, id uuid.UUID) (*settlement.Run, error) {
	return s.runRepo.GetByID(ctx, id)
}

// ListRuns retrieves a paginated list of runs plus the total count
func (s *RunServiceImpl) ListRuns(ctx context.Context, page, perPage int) ([]*settlement.Run, int64, error) {
	offset := (page - 1) * perPage

	runs, err := s.runRepo.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.runRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// RequestCalculation transitions the run to calculating and publishes the
// aggregation request for the worker. The transition is committed before the
// publish; a failed publish leaves the run calculating for the operator to
// retry or force-fail.
func (s *RunServiceImpl) RequestCalculation(ctx context.Context, runID uuid.UUID, actor shared.Actor, correlationID string) (*settlement.Run, error) {
	run, err := s.mutateRun(ctx, runID, func(run *settlement.Run) error {
		return run.StartCalculation(actor)
	}, nil)
	if err != nil {
		return nil, err
	}

	request := &shared.CalculationRequest{
		RunID:         run.ID,
		RequestedBy:   actor,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.producer.Publish(ctx, run.ID.String(), request); err != nil {
		s.logger.Error("Failed to publish calculation request",
			"run_id", run.ID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to publish calculation request for run %s: %w", run.ID, err)
	}

	s.logger.Info("Calculation requested",
		"run_id", run.ID.String(),
		"run_number", run.RunNumber,
	)
	return run, nil
}

// SubmitForApproval creates the linked approval request and moves the run to
// pending approval atomically
func (s *RunServiceImpl) SubmitForApproval(ctx context.Context, runID uuid.UUID, actor shared.Actor, riskScore *int) (*settlement.Run, *approval.Request, error) {
	var (
		run     *settlement.Run
		request *approval.Request
	)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		runRepo := s.runRepo.WithTx(tx)
		approvalRepo := s.approvalRepo.WithTx(tx)
		outboxRepo := s.outboxRepo.WithTx(tx)

		var err error
		run, err = runRepo.GetByID(ctx, runID)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(run.Summary)
		if err != nil {
			return fmt.Errorf("failed to marshal run summary: %w", err)
		}

		amount := run.TotalAmount
		request = approval.NewRequest(
			approval.RequestTypeSettlementApproval,
			priorityForAmount(run.TotalAmount),
			actor,
			payload,
			approval.Metadata{
				EntityType: runEntityType,
				EntityID:   run.ID,
				RiskScore:  riskScore,
				Amount:     &amount,
			},
		)
		if err := approvalRepo.Create(ctx, request); err != nil {
			return err
		}

		if err := run.SubmitForApproval(actor, request.ID); err != nil {
			return err
		}
		if err := runRepo.Update(ctx, run); err != nil {
			return err
		}

		if err := s.writeEvent(ctx, outboxRepo, event.New(event.TypeApprovalRequested, requestEntityType, request.ID, actor, map[string]string{
			"run_id":     run.ID.String(),
			"run_number": run.RunNumber,
		})); err != nil {
			return err
		}
		return s.writeEvent(ctx, outboxRepo, event.New(event.TypeRunPendingApproval, runEntityType, run.ID, actor, map[string]string{
			"approval_request_id": request.ID.String(),
		}))
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Settlement run submitted for approval",
		"run_id", run.ID.String(),
		"approval_request_id", request.ID.String(),
		"total_amount", run.TotalAmount,
	)
	s.archiveRunTrail(ctx, run)
	s.archiveRequestTrail(ctx, request)
	return run, request, nil
}

// StartProcessing marks an approved run as actively disbursing
func (s *RunServiceImpl) StartProcessing(ctx context.Context, runID uuid.UUID, actor shared.Actor) (*settlement.Run, error) {
	return s.mutateRun(ctx, runID, func(run *settlement.Run) error {
		return run.StartProcessing(actor)
	}, nil)
}

// CompleteRun pays out every partner settlement and completes the run
func (s *RunServiceImpl) CompleteRun(ctx context.Context, runID uuid.UUID, actor shared.Actor) (*settlement.Run, error) {
	return s.mutateRun(ctx, runID, func(run *settlement.Run) error {
		return run.MarkCompleted(actor)
	}, func(run *settlement.Run) *event.Event {
		return event.New(event.TypeRunCompleted, runEntityType, run.ID, actor, map[string]string{
			"total_net_amount": fmt.Sprintf("%d", run.Summary.TotalNetAmount),
		})
	})
}

// FailRun force-fails the run with a mandatory reason
func (s *RunServiceImpl) FailRun(ctx context.Context, runID uuid.UUID, actor shared.Actor, reason string) (*settlement.Run, error) {
	return s.mutateRun(ctx, runID, func(run *settlement.Run) error {
		return run.Fail(actor, reason)
	}, func(run *settlement.Run) *event.Event {
		return event.New(event.TypeRunFailed, runEntityType, run.ID, actor, map[string]string{
			"reason": reason,
		})
	})
}

// AdjustPartner applies a signed manual correction to one partner's settlement
func (s *RunServiceImpl) AdjustPartner(ctx context.Context, runID uuid.UUID, partnerID uuid.UUID, delta int64, actor shared.Actor, comment string) (*settlement.Run, error) {
	return s.mutateRun(ctx, runID, func(run *settlement.Run) error {
		return run.AdjustPartner(partnerID, delta, actor, comment)
	}, nil)
}

// ApplyApprovalDecision synchronizes a run with the decision on its linked
// approval request, inside the decision transaction
func (s *RunServiceImpl) ApplyApprovalDecision(ctx context.Context, tx pgx.Tx, request *approval.Request) error {
	if request.Type != approval.RequestTypeSettlementApproval {
		return nil
	}

	runRepo := s.runRepo.WithTx(tx)
	outboxRepo := s.outboxRepo.WithTx(tx)

	run, err := runRepo.GetByID(ctx, request.Metadata.EntityID)
	if err != nil {
		return err
	}

	switch request.Status {
	case approval.StatusApproved:
		if err := run.Approve(*request.Approver); err != nil {
			return err
		}
		if err := runRepo.Update(ctx, run); err != nil {
			return err
		}
		if err := s.writeEvent(ctx, outboxRepo, event.New(event.TypeRunApproved, runEntityType, run.ID, *request.Approver, nil)); err != nil {
			return err
		}
	case approval.StatusRejected:
		if err := run.ReturnToReview(request.Requestor, request.DecisionComment); err != nil {
			return err
		}
		if err := runRepo.Update(ctx, run); err != nil {
			return err
		}
	case approval.StatusCancelled:
		if err := run.ReturnToReview(request.Requestor, "approval request cancelled"); err != nil {
			return err
		}
		if err := runRepo.Update(ctx, run); err != nil {
			return err
		}
	}

	s.archiveRunTrail(ctx, run)
	return nil
}

// mutateRun loads the run, applies the mutation, and persists the result in
// one transaction, optionally writing a transition event to the outbox
func (s *RunServiceImpl) mutateRun(ctx context.Context, runID uuid.UUID, mutate func(*settlement.Run) error, eventFor func(*settlement.Run) *event.Event) (*settlement.Run, error) {
	var run *settlement.Run

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		runRepo := s.runRepo.WithTx(tx)

		var err error
		run, err = runRepo.GetByID(ctx, runID)
		if err != nil {
			return err
		}

		if err := mutate(run); err != nil {
			return err
		}
		if err := runRepo.Update(ctx, run); err != nil {
			return err
		}

		if eventFor != nil {
			if ev := eventFor(run); ev != nil {
				return s.writeEvent(ctx, s.outboxRepo.WithTx(tx), ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.archiveRunTrail(ctx, run)
	return run, nil
}

func (s *RunServiceImpl) writeEvent(ctx context.Context, repo outbox.Repository, ev *event.Event) error {
	message, err := outbox.NewMessage(ev)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return repo.Create(ctx, message)
}

// archiveRunTrail mirrors the run's audit trail into the compliance archive.
// Archival is best effort; the JSONB trail on the row is the source of truth
// and re-archiving is idempotent.
func (s *RunServiceImpl) archiveRunTrail(ctx context.Context, run *settlement.Run) {
	if err := s.archive.AppendHistory(ctx, runEntityType, run.ID, run.History); err != nil {
		s.logger.Error("Failed to archive run history", "run_id", run.ID.String(), "error", err)
	}
	if err := s.archive.AppendLogs(ctx, runEntityType, run.ID, run.Logs); err != nil {
		s.logger.Error("Failed to archive run logs", "run_id", run.ID.String(), "error", err)
	}
}

func (s *RunServiceImpl) archiveRequestTrail(ctx context.Context, request *approval.Request) {
	if err := s.archive.AppendHistory(ctx, requestEntityType, request.ID, request.History); err != nil {
		s.logger.Error("Failed to archive approval request history", "request_id", request.ID.String(), "error", err)
	}
	if err := s.archive.AppendLogs(ctx, requestEntityType, request.ID, request.Logs); err != nil {
		s.logger.Error("Failed to archive approval request logs", "request_id", request.ID.String(), "error", err)
	}
}

func priorityForAmount(amount int64) approval.Priority {
	switch {
	case amount >= criticalAmountThreshold:
		return approval.PriorityCritical
	case amount >= highAmountThreshold:
		return approval.PriorityHigh
	case amount >= mediumAmountThreshold:
		return approval.PriorityMedium
	default:
		return approval.PriorityLow
	}
}
