package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/event"
	"github.com/finrecon/settlement-service/internal/domain/outbox"
	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

const runEntityType = "settlement_run"

// TxExecutor runs a function inside a database transaction
type TxExecutor interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// CalculationServiceImpl implements the CalculationService interface
type CalculationServiceImpl struct {
	db         TxExecutor
	runRepo    settlement.Repository
	txSource   settlement.TransactionSource
	aggregator RunAggregator
	outboxRepo outbox.Repository
	archive    audit.Archive
	logger     *slog.Logger
}

// NewCalculationService creates a new calculation service
func NewCalculationService(
	logger *slog.Logger,
	db TxExecutor,
	runRepo settlement.Repository,
	txSource settlement.TransactionSource,
	aggregator RunAggregator,
	outboxRepo outbox.Repository,
	archive audit.Archive,
) CalculationService {
	return &CalculationServiceImpl{
		db:         db,
		runRepo:    runRepo,
		txSource:   txSource,
		aggregator: aggregator,
		outboxRepo: outboxRepo,
		archive:    archive,
		logger:     logger,
	}
}

// ProcessCalculationRequest aggregates the run's transactions into a partner
// breakdown and installs it on the run. Requests for runs that are no longer
// calculating are skipped, which makes redelivery safe.
func (s *CalculationServiceImpl) ProcessCalculationRequest(ctx context.Context, request *shared.CalculationRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	run, err := s.runRepo.GetByID(ctx, request.RunID)
	if err != nil {
		return fmt.Errorf("failed to load run %s for calculation: %w", request.RunID, err)
	}

	if run.Status != settlement.RunStatusCalculating {
		logger.Info("Skipping calculation request, run is not calculating",
			"run_id", run.ID.String(),
			"status", string(run.Status),
		)
		return nil
	}

	transactions, err := s.txSource.TransactionsForRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load transactions for run %s: %w", run.ID, err)
	}

	breakdown, aggErr := s.aggregator.CalculateRun(ctx, run, transactions)
	if aggErr != nil {
		logger.Error("Run aggregation failed",
			"run_id", run.ID.String(),
			"error", aggErr,
		)
		return s.failRun(ctx, run.ID, aggErr)
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		runRepo := s.runRepo.WithTx(tx)

		// Reload inside the transaction; the operator may have force-failed
		// the run while aggregation was in flight.
		current, err := runRepo.GetByID(ctx, run.ID)
		if err != nil {
			return err
		}
		if current.Status != settlement.RunStatusCalculating {
			logger.Info("Run moved on during aggregation, discarding result",
				"run_id", current.ID.String(),
				"status", string(current.Status),
			)
			run = current
			return nil
		}

		if err := current.CompleteCalculation(breakdown, shared.SystemActor); err != nil {
			return err
		}
		if err := runRepo.Update(ctx, current); err != nil {
			return err
		}
		run = current
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to install breakdown for run %s: %w", run.ID, err)
	}

	logger.Info("Calculation request processed",
		"run_id", run.ID.String(),
		"status", string(run.Status),
		"total_net_amount", run.Summary.TotalNetAmount,
	)
	s.archiveRunTrail(ctx, run)
	return nil
}

// failRun moves the run to failed after an aggregation error and writes the
// failure event to the outbox. Partial sums are never installed.
func (s *CalculationServiceImpl) failRun(ctx context.Context, runID uuid.UUID, aggErr error) error {
	var run *settlement.Run

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		runRepo := s.runRepo.WithTx(tx)
		outboxRepo := s.outboxRepo.WithTx(tx)

		var err error
		run, err = runRepo.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status != settlement.RunStatusCalculating {
			return nil
		}

		if err := run.FailCalculation(aggErr.Error()); err != nil {
			return err
		}
		if err := runRepo.Update(ctx, run); err != nil {
			return err
		}

		message, err := outbox.NewMessage(event.New(event.TypeRunFailed, runEntityType, run.ID, shared.SystemActor, map[string]string{
			"reason": aggErr.Error(),
			"source": "aggregation",
		}))
		if err != nil {
			return fmt.Errorf("failed to create outbox message: %w", err)
		}
		return outboxRepo.Create(ctx, message)
	})
	if err != nil {
		return fmt.Errorf("failed to record aggregation failure for run %s: %w", runID, err)
	}

	s.archiveRunTrail(ctx, run)
	return nil
}

func (s *CalculationServiceImpl) archiveRunTrail(ctx context.Context, run *settlement.Run) {
	if err := s.archive.AppendHistory(ctx, runEntityType, run.ID, run.History); err != nil {
		s.logger.Error("Failed to archive run history", "run_id", run.ID.String(), "error", err)
	}
	if err := s.archive.AppendLogs(ctx, runEntityType, run.ID, run.Logs); err != nil {
		s.logger.Error("Failed to archive run logs", "run_id", run.ID.String(), "error", err)
	}
}
