// Package settlement implements the settlement run lifecycle: a batch payout
// cycle covering one period across multiple partners, governed by an explicit
// state machine from draft through calculation, review, approval, and
// payment.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// Common errors
var (
	ErrEmptyRunNumber     = errors.New("run number cannot be empty")
	ErrInvalidPeriod      = errors.New("period end must not be before period start")
	ErrNoPartners         = errors.New("settlement run has no partners")
	ErrNotSubmitted       = errors.New("settlement run has no linked approval request")
	ErrEmptyFailureReason = errors.New("failure reason cannot be empty")
)

// ErrPartnerNotFound indicates a partner with no settlement in the run
type ErrPartnerNotFound struct {
	RunID     uuid.UUID
	PartnerID uuid.UUID
}

func (e ErrPartnerNotFound) Error() string {
	return fmt.Sprintf("partner %s has no settlement in run %s", e.PartnerID, e.RunID)
}

// Run is a settlement run: one reconciliation/payout cycle. It exclusively
// owns its partner settlements and summary; the linked approval request is a
// back-reference only.
type Run struct {
	ID                uuid.UUID            `json:"id"`
	RunNumber         string               `json:"run_number"`
	PeriodStart       time.Time            `json:"period_start"`
	PeriodEnd         time.Time            `json:"period_end"`
	Status            RunStatus            `json:"status"`
	Currency          string               `json:"currency"`
	TotalAmount       int64                `json:"total_amount"` // Always Summary.TotalNetAmount
	PaymentMethod     shared.PaymentMethod `json:"payment_method"`
	CreatedBy         shared.Actor         `json:"created_by"`
	ApprovedBy        *shared.Actor        `json:"approved_by,omitempty"`
	ApprovalRequestID *uuid.UUID           `json:"approval_request_id,omitempty"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
	FailureReason     string               `json:"failure_reason,omitempty"`
	Breakdown         []*PartnerSettlement `json:"breakdown"`
	Summary           Summary              `json:"summary"`
	Version           int                  `json:"version"` // For optimistic locking
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`

	audit.Trail
}

// NewRun creates a draft settlement run with one pending, zeroed partner
// settlement per partner
func NewRun(runNumber string, periodStart, periodEnd time.Time, currency string, method shared.PaymentMethod, createdBy shared.Actor, partners []PartnerRef) (*Run, error) {
	if runNumber == "" {
		return nil, ErrEmptyRunNumber
	}
	if len(currency) != 3 {
		return nil, shared.ErrInvalidCurrencyFormat
	}
	if periodEnd.Before(periodStart) {
		return nil, ErrInvalidPeriod
	}

	now := time.Now().UTC()
	run := &Run{
		ID:            uuid.New(),
		RunNumber:     runNumber,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Status:        RunStatusDraft,
		Currency:      currency,
		PaymentMethod: method,
		CreatedBy:     createdBy,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, partner := range partners {
		run.Breakdown = append(run.Breakdown, NewPartnerSettlement(run.ID, partner, currency))
	}
	run.recomputeSummary()

	run.Append(audit.ActionCreated, createdBy, "", map[string]string{"run_number": runNumber})
	run.Log(audit.LogLevelInfo, "settlement run created")
	return run, nil
}

// StartCalculation moves the run from draft to calculating. The only guard
// is a non-empty partner set.
func (r *Run) StartCalculation(actor shared.Actor) error {
	if err := r.transition(RunStatusCalculating); err != nil {
		return err
	}
	if len(r.Breakdown) == 0 {
		return ErrNoPartners
	}

	r.apply(RunStatusCalculating)
	r.Append(audit.ActionSubmitted, actor, "", map[string]string{"stage": "calculation"})
	r.Log(audit.LogLevelInfo, "calculation requested")
	return nil
}

// CompleteCalculation installs the aggregated partner settlements produced by
// the aggregation engine and moves the run to pending review
func (r *Run) CompleteCalculation(breakdown []*PartnerSettlement, actor shared.Actor) error {
	if err := r.transition(RunStatusPendingReview); err != nil {
		return err
	}

	r.Breakdown = breakdown
	r.recomputeSummary()
	r.apply(RunStatusPendingReview)
	r.Append(audit.ActionCommented, actor, "aggregation completed", map[string]string{
		"partner_count": fmt.Sprintf("%d", len(breakdown)),
	})
	r.Log(audit.LogLevelInfo, "aggregation completed, run pending review")
	return nil
}

// FailCalculation records an aggregation failure as a system-level event and
// moves the run to failed. Partial sums are never installed.
func (r *Run) FailCalculation(reason string) error {
	if reason == "" {
		return ErrEmptyFailureReason
	}
	if err := r.transition(RunStatusFailed); err != nil {
		return err
	}

	r.FailureReason = reason
	r.apply(RunStatusFailed)
	r.Append(audit.ActionFailed, shared.SystemActor, reason, map[string]string{"source": "aggregation"})
	r.Log(audit.LogLevelError, "aggregation failed: "+reason)
	return nil
}

// SubmitForApproval links the run to its approval request and moves it from
// pending review to pending approval. No unauthenticated auto-transition:
// this is always an explicit action.
func (r *Run) SubmitForApproval(actor shared.Actor, approvalRequestID uuid.UUID) error {
	if err := r.transition(RunStatusPendingApproval); err != nil {
		return err
	}

	r.ApprovalRequestID = &approvalRequestID
	r.apply(RunStatusPendingApproval)
	r.Append(audit.ActionSubmitted, actor, "", map[string]string{
		"approval_request_id": approvalRequestID.String(),
	})
	r.Log(audit.LogLevelInfo, "submitted for approval")
	return nil
}

// Approve moves the run from pending approval to approved. The run cannot be
// approved without a linked approval request; callers are responsible for
// only invoking this once that request itself is approved.
func (r *Run) Approve(approver shared.Actor) error {
	if err := r.transition(RunStatusApproved); err != nil {
		return err
	}
	if r.ApprovalRequestID == nil {
		return ErrNotSubmitted
	}

	r.ApprovedBy = &approver
	r.apply(RunStatusApproved)
	r.Append(audit.ActionApproved, approver, "", nil)
	r.Log(audit.LogLevelInfo, "run approved by "+approver.Name)
	return nil
}

// ReturnToReview is the rejection loop: when the linked approval request is
// rejected the run drops back from pending approval to pending review
func (r *Run) ReturnToReview(actor shared.Actor, reason string) error {
	if err := r.transition(RunStatusPendingReview); err != nil {
		return err
	}

	r.apply(RunStatusPendingReview)
	r.Append(audit.ActionRejected, actor, reason, nil)
	r.Log(audit.LogLevelWarning, "approval rejected, run returned to review")
	return nil
}

// StartProcessing marks the run as actively disbursing
func (r *Run) StartProcessing(actor shared.Actor) error {
	if err := r.transition(RunStatusProcessing); err != nil {
		return err
	}

	r.apply(RunStatusProcessing)
	r.Append(audit.ActionCommented, actor, "disbursement started", nil)
	r.Log(audit.LogLevelInfo, "disbursement started")
	return nil
}

// MarkCompleted pays out every partner settlement and moves the run to
// completed. This is the only mutation path for partner settlement status.
// Re-entering a completed run has no effect.
func (r *Run) MarkCompleted(actor shared.Actor) error {
	if r.Status == RunStatusCompleted {
		return nil // Idempotent
	}
	if err := r.transition(RunStatusCompleted); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, ps := range r.Breakdown {
		ps.MarkPaid(r.PaymentMethod, paymentReference(r.RunNumber, ps.PartnerID), now)
	}
	r.recomputeSummary()

	r.CompletedAt = &now
	r.apply(RunStatusCompleted)
	r.Append(audit.ActionCompleted, actor, "", map[string]string{
		"total_net_amount": fmt.Sprintf("%d", r.Summary.TotalNetAmount),
	})
	r.Log(audit.LogLevelInfo, "settlement run completed, all partners paid")
	return nil
}

// Fail force-transitions the run to failed by operator action. Legal from
// every state except completed and failed; the reason is mandatory and
// recorded in the audit trail.
func (r *Run) Fail(actor shared.Actor, reason string) error {
	if reason == "" {
		return ErrEmptyFailureReason
	}
	if r.Status.Terminal() {
		return ErrInvalidTransition{RunID: r.ID, From: r.Status, To: RunStatusFailed}
	}

	r.FailureReason = reason
	r.apply(RunStatusFailed)
	r.Append(audit.ActionFailed, actor, reason, map[string]string{"source": "operator"})
	r.Log(audit.LogLevelError, "run failed: "+reason)
	return nil
}

// AdjustPartner applies a signed manual correction to one partner's
// settlement while the run is under review, recomputing the net amount and
// the run summary
func (r *Run) AdjustPartner(partnerID uuid.UUID, delta int64, actor shared.Actor, comment string) error {
	if r.Status != RunStatusPendingReview {
		return ErrInvalidTransition{RunID: r.ID, From: r.Status, To: RunStatusPendingReview}
	}

	ps := r.partnerSettlement(partnerID)
	if ps == nil {
		return ErrPartnerNotFound{RunID: r.ID, PartnerID: partnerID}
	}

	ps.Adjustments += delta
	ps.Recalculate()
	r.recomputeSummary()
	r.touch()

	r.Append(audit.ActionCommented, actor, comment, map[string]string{
		"partner_id": partnerID.String(),
		"adjustment": fmt.Sprintf("%d", delta),
	})
	r.Log(audit.LogLevelInfo, "manual adjustment applied to partner "+ps.PartnerName)
	return nil
}

// PartnerSettlementFor returns the settlement for the given partner, or nil
func (r *Run) PartnerSettlementFor(partnerID uuid.UUID) *PartnerSettlement {
	return r.partnerSettlement(partnerID)
}

func (r *Run) partnerSettlement(partnerID uuid.UUID) *PartnerSettlement {
	for _, ps := range r.Breakdown {
		if ps.PartnerID == partnerID {
			return ps
		}
	}
	return nil
}

// transition checks the state machine table without mutating anything, so
// guard failures leave the run untouched
func (r *Run) transition(to RunStatus) error {
	if !r.Status.CanTransitionTo(to) {
		return ErrInvalidTransition{RunID: r.ID, From: r.Status, To: to}
	}
	return nil
}

func (r *Run) apply(to RunStatus) {
	r.Status = to
	r.touch()
}

func (r *Run) touch() {
	r.UpdatedAt = time.Now().UTC()
	r.Version++
}

func (r *Run) recomputeSummary() {
	r.Summary = Summarize(r.Breakdown)
	r.TotalAmount = r.Summary.TotalNetAmount
}

// paymentReference generates the disbursement reference recorded on a paid
// partner settlement
func paymentReference(runNumber string, partnerID uuid.UUID) string {
	return fmt.Sprintf("PAY-%s-%s", runNumber, partnerID.String()[:8])
}
