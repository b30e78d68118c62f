package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/settlement-service/internal/domain/approval"
	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/outbox"
	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// fakeTxExecutor runs the transaction function directly with a nil tx, so
// repository mocks that ignore WithTx can observe every call
type fakeTxExecutor struct {
	err error
}

func (f *fakeTxExecutor) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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

type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) Create(ctx context.Context, request *approval.Request) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approval.Request), args.Error(1)
}

func (m *MockApprovalRepository) ListByStatus(ctx context.Context, status approval.Status, limit, offset int) ([]*approval.Request, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approval.Request), args.Error(1)
}

func (m *MockApprovalRepository) CountByStatus(ctx context.Context, status approval.Status) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockApprovalRepository) Update(ctx context.Context, request *approval.Request) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockApprovalRepository) WithTx(tx pgx.Tx) approval.Repository {
	return m
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	return nil
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.HistoryEntry), args.Error(1)
}

func (m *MockArchive) LogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]audit.LogEntry, error) {
	args := m.Called(ctx, entityType, entityID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.LogEntry), args.Error(1)
}

// permissiveArchive accepts every archive write; trails are archived best
// effort and most tests do not care about them
func permissiveArchive() *MockArchive {
	archive := new(MockArchive)
	archive.On("AppendHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	archive.On("AppendLogs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return archive
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func testActor(name string) shared.Actor {
	return shared.Actor{ID: uuid.New(), Name: name}
}

func draftRun(t *testing.T, createdBy shared.Actor) *settlement.Run {
	t.Helper()
	run, err := settlement.NewRun(
		"RUN-2026-08",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC),
		"EUR",
		shared.PaymentMethodBankTransfer,
		createdBy,
		[]settlement.PartnerRef{
			{ID: uuid.New(), Name: "Acme Marketplace", Type: shared.PartnerTypeMarketplace},
		},
	)
	require.NoError(t, err)
	return run
}

// reviewRun returns a run that has been through aggregation and sits in
// pending review with a known net total
func reviewRun(t *testing.T, createdBy shared.Actor) *settlement.Run {
	t.Helper()
	run := draftRun(t, createdBy)
	require.NoError(t, run.StartCalculation(createdBy))

	ps := settlement.NewPartnerSettlement(run.ID, settlement.PartnerRef{
		ID:   run.Breakdown[0].PartnerID,
		Name: run.Breakdown[0].PartnerName,
		Type: run.Breakdown[0].PartnerType,
	}, run.Currency)
	ps.GrossAmount = 150000
	ps.Fees = 4500
	ps.NetAmount = 145500
	ps.TransactionCount = 12
	require.NoError(t, run.CompleteCalculation([]*settlement.PartnerSettlement{ps}, shared.SystemActor))
	return run
}
