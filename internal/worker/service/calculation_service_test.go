package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/settlement-service/internal/aggregation"
	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/event"
	"github.com/finrecon/settlement-service/internal/domain/outbox"
	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

type fakeTxExecutor struct{}

func (f *fakeTxExecutor) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *settlement.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*settlement.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Run), args.Error(1)
}

func (m *MockRunRepository) List(ctx context.Context, limit, offset int) ([]*settlement.Run, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*settlement.Run), args.Error(1)
}

func (m *MockRunRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRunRepository) Update(ctx context.Context, run *settlement.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) WithTx(tx pgx.Tx) settlement.Repository {
	return m
}

type MockTransactionSource struct {
	mock.Mock
}

func (m *MockTransactionSource) TransactionsForRun(ctx context.Context, runID uuid.UUID) (map[uuid.UUID][]shared.Transaction, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]shared.Transaction), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) AppendHistory(ctx context.Context, entityType string, entityID uuid.UUID, entries []audit.HistoryEntry) error {
	args := m.Called(ctx, entityType, entityID, entries)
	return args.Error(0)
}

func (m *MockArchive) AppendLogs(ctx context.Context, entityType string, entityID uuid.UUID, entries []audit.LogEntry) error {
	args := m.Called(ctx, entityType, entityID, entries)
	return args.Error(0)
}

func (m *MockArchive) HistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]audit.HistoryEntry, error) {
	args := m.Called(ctx, entityType, entityID, limit, offset)
	return args.Get(0).([]audit.HistoryEntry), args.Error(1)
}

func (m *MockArchive) LogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]audit.LogEntry, error) {
	args := m.Called(ctx, entityType, entityID, limit, offset)
	return args.Get(0).([]audit.LogEntry), args.Error(1)
}

type calculationFixture struct {
	runRepo    *MockRunRepository
	txSource   *MockTransactionSource
	outboxRepo *MockOutboxRepository
	archive    *MockArchive
	service    CalculationService
}

func newCalculationFixture(t *testing.T) *calculationFixture {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	calculator, err := aggregation.NewCalculator(aggregation.CalculatorConfig{Size: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(calculator.Release)

	f := &calculationFixture{
		runRepo:    new(MockRunRepository),
		txSource:   new(MockTransactionSource),
		outboxRepo: new(MockOutboxRepository),
		archive:    new(MockArchive),
	}
	f.archive.On("AppendHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.archive.On("AppendLogs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.service = NewCalculationService(logger, &fakeTxExecutor{}, f.runRepo, f.txSource, calculator, f.outboxRepo, f.archive)
	return f
}

func calculatingRun(t *testing.T, partnerID uuid.UUID) *settlement.Run {
	t.Helper()
	actor := shared.Actor{ID: uuid.New(), Name: "maria.ops"}
	run, err := settlement.NewRun(
		"RUN-2026-08",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC),
		"EUR",
		shared.PaymentMethodBankTransfer,
		actor,
		[]settlement.PartnerRef{
			{ID: partnerID, Name: "Acme Marketplace", Type: shared.PartnerTypeMarketplace},
		},
	)
	require.NoError(t, err)
	require.NoError(t, run.StartCalculation(actor))
	return run
}

func calculationRequest(runID uuid.UUID) *shared.CalculationRequest {
	return &shared.CalculationRequest{
		RunID:         runID,
		RequestedBy:   shared.Actor{ID: uuid.New(), Name: "maria.ops"},
		CorrelationID: "corr-1",
		Timestamp:     time.Now().UTC(),
	}
}

func TestCalculationService_ProcessCalculationRequest(t *testing.T) {
	t.Run("InstallsBreakdown", func(t *testing.T) {
		f := newCalculationFixture(t)
		partnerID := uuid.New()
		run := calculatingRun(t, partnerID)

		transactions := map[uuid.UUID][]shared.Transaction{
			partnerID: {
				{ID: uuid.New(), TransactionDate: time.Now().UTC(), Type: shared.TransactionTypeSale, Amount: 100000, Fee: 3000, Currency: "EUR"},
				{ID: uuid.New(), TransactionDate: time.Now().UTC(), Type: shared.TransactionTypeSale, Amount: 50000, Fee: 1500, Currency: "EUR"},
			},
		}

		f.runRepo.On("GetByID", mock.Anything, run.ID).Return(run, nil)
		f.txSource.On("TransactionsForRun", mock.Anything, run.ID).Return(transactions, nil)
		f.runRepo.On("Update", mock.Anything, run).Return(nil)

		err := f.service.ProcessCalculationRequest(context.Background(), calculationRequest(run.ID))

		require.NoError(t, err)
		assert.Equal(t, settlement.RunStatusPendingReview, run.Status)
		require.Len(t, run.Breakdown, 1)
		assert.Equal(t, int64(150000), run.Breakdown[0].GrossAmount)
		assert.Equal(t, int64(4500), run.Breakdown[0].Fees)
		assert.Equal(t, int64(145500), run.Breakdown[0].NetAmount)
		assert.Equal(t, int64(145500), run.Summary.TotalNetAmount)
	})

	t.Run("SkipsRunsNoLongerCalculating", func(t *testing.T) {
		f := newCalculationFixture(t)
		partnerID := uuid.New()
		run := calculatingRun(t, partnerID)
		require.NoError(t, run.Fail(shared.Actor{ID: uuid.New(), Name: "ops"}, "operator abort"))

		f.runRepo.On("GetByID", mock.Anything, run.ID).Return(run, nil)

		err := f.service.ProcessCalculationRequest(context.Background(), calculationRequest(run.ID))

		require.NoError(t, err)
		f.txSource.AssertNotCalled(t, "TransactionsForRun", mock.Anything, mock.Anything)
		f.runRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("CurrencyMismatchFailsRun", func(t *testing.T) {
		f := newCalculationFixture(t)
		partnerID := uuid.New()
		run := calculatingRun(t, partnerID)

		transactions := map[uuid.UUID][]shared.Transaction{
			partnerID: {
				{ID: uuid.New(), TransactionDate: time.Now().UTC(), Type: shared.TransactionTypeSale, Amount: 100000, Fee: 3000, Currency: "USD"},
			},
		}

		f.runRepo.On("GetByID", mock.Anything, run.ID).Return(run, nil)
		f.txSource.On("TransactionsForRun", mock.Anything, run.ID).Return(transactions, nil)
		f.runRepo.On("Update", mock.Anything, run).Return(nil)
		f.outboxRepo.On("Create", mock.Anything, mock.MatchedBy(func(message *outbox.Message) bool {
			ev, err := message.GetEvent()
			return err == nil && ev.Type == event.TypeRunFailed && ev.Details["source"] == "aggregation"
		})).Return(nil)

		err := f.service.ProcessCalculationRequest(context.Background(), calculationRequest(run.ID))

		require.NoError(t, err)
		assert.Equal(t, settlement.RunStatusFailed, run.Status)
		assert.Empty(t, run.Breakdown[0].GrossAmount)
		f.outboxRepo.AssertExpectations(t)
	})

	t.Run("RunLoadFailureIsRetryable", func(t *testing.T) {
		f := newCalculationFixture(t)
		runID := uuid.New()
		f.runRepo.On("GetByID", mock.Anything, runID).Return(nil, errors.New("connection refused"))

		err := f.service.ProcessCalculationRequest(context.Background(), calculationRequest(runID))

		require.Error(t, err)
	})

	t.Run("TransactionLoadFailureIsRetryable", func(t *testing.T) {
		f := newCalculationFixture(t)
		partnerID := uuid.New()
		run := calculatingRun(t, partnerID)

		f.runRepo.On("GetByID", mock.Anything, run.ID).Return(run, nil)
		f.txSource.On("TransactionsForRun", mock.Anything, run.ID).Return(nil, errors.New("connection refused"))

		err := f.service.ProcessCalculationRequest(context.Background(), calculationRequest(run.ID))

		require.Error(t, err)
		assert.Equal(t, settlement.RunStatusCalculating, run.Status)
	})

	t.Run("PartnerWithNoTransactionsSettlesToZero", func(t *testing.T) {
		f := newCalculationFixture(t)
		partnerID := uuid.New()
		run := calculatingRun(t, partnerID)

		f.runRepo.On("GetByID", mock.Anything, run.ID).Return(run, nil)
		f.txSource.On("TransactionsForRun", mock.Anything, run.ID).Return(map[uuid.UUID][]shared.Transaction{}, nil)
		f.runRepo.On("Update", mock.Anything, run).Return(nil)

		err := f.service.ProcessCalculationRequest(context.Background(), calculationRequest(run.ID))

		require.NoError(t, err)
		assert.Equal(t, settlement.RunStatusPendingReview, run.Status)
		assert.Equal(t, int64(0), run.Summary.TotalNetAmount)
		assert.Equal(t, 0, run.Breakdown[0].TransactionCount)
	})
}
