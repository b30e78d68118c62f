package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/settlement-service/internal/domain/approval"
	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// CreateRunParams carries the caller-supplied fields for a new settlement run
type CreateRunParams struct {
	RunNumber     string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Currency      string
	PaymentMethod shared.PaymentMethod
	CreatedBy     shared.Actor
	Partners      []settlement.PartnerRef
}

// RunService defines the interface for settlement run operations
type RunService interface {
	// CreateRun creates a new draft settlement run
	CreateRun(ctx context.Context, params CreateRunParams) (*settlement.Run, error)

	// GetRunByID retrieves a settlement run by its ID
	// Returns settlement.ErrRunNotFound if the run doesn't exist
	GetRunByID(ctx context.Context, id uuid.UUID) (*settlement.Run, error)

	// ListRuns retrieves a paginated list of runs plus the total count
	ListRuns(ctx context.Context, page, perPage int) ([]*settlement.Run, int64, error)

	// RequestCalculation transitions the run to calculating and hands the
	// aggregation request to the worker over Kafka
	RequestCalculation(ctx context.Context, runID uuid.UUID, actor shared.Actor, correlationID string) (*settlement.Run, error)

	// SubmitForApproval creates the linked approval request and moves the
	// run to pending approval in one transaction
	SubmitForApproval(ctx context.Context, runID uuid.UUID, actor shared.Actor, riskScore *int) (*settlement.Run, *approval.Request, error)

	// StartProcessing marks an approved run as actively disbursing
	StartProcessing(ctx context.Context, runID uuid.UUID, actor shared.Actor) (*settlement.Run, error)

	// CompleteRun pays out every partner settlement and completes the run.
	// Completing an already completed run is a no-op.
	CompleteRun(ctx context.Context, runID uuid.UUID, actor shared.Actor) (*settlement.Run, error)

	// FailRun force-fails the run with a mandatory reason
	FailRun(ctx context.Context, runID uuid.UUID, actor shared.Actor, reason string) (*settlement.Run, error)

	// AdjustPartner applies a signed manual correction to one partner's
	// settlement while the run is under review
	AdjustPartner(ctx context.Context, runID uuid.UUID, partnerID uuid.UUID, delta int64, actor shared.Actor, comment string) (*settlement.Run, error)

	// ApplyApprovalDecision synchronizes a run with the decision taken on
	// its linked approval request. Registered as a decision listener on the
	// approval service and invoked inside the decision transaction.
	ApplyApprovalDecision(ctx context.Context, tx pgx.Tx, request *approval.Request) error
}

// DecisionListener is invoked inside the transaction that records an
// approval decision, so dependent state moves atomically with the decision
type DecisionListener func(ctx context.Context, tx pgx.Tx, request *approval.Request) error

// ApprovalService defines the interface for maker-checker approval operations
type ApprovalService interface {
	// GetRequestByID retrieves an approval request by its ID
	// Returns approval.ErrRequestNotFound if the request doesn't exist
	GetRequestByID(ctx context.Context, id uuid.UUID) (*approval.Request, error)

	// ListRequestsByStatus retrieves a paginated list of requests with the
	// given status plus the total count
	ListRequestsByStatus(ctx context.Context, status approval.Status, page, perPage int) ([]*approval.Request, int64, error)

	// Approve records an approval decision. The approver must differ from
	// the requestor.
	Approve(ctx context.Context, id uuid.UUID, approver shared.Actor, comment string) (*approval.Request, error)

	// Reject records a rejection. A non-empty comment is mandatory.
	Reject(ctx context.Context, id uuid.UUID, actor shared.Actor, comment string) (*approval.Request, error)

	// Cancel withdraws a pending request. Only the requestor may cancel.
	Cancel(ctx context.Context, id uuid.UUID, actor shared.Actor) (*approval.Request, error)

	// RegisterDecisionListener adds a hook invoked inside every decision
	// transaction. Must be called during wiring, before requests are served.
	RegisterDecisionListener(listener DecisionListener)
}
