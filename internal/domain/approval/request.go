// Package approval implements the generic maker-checker workflow used for
// settlement-run approval and rule-change approval. A request starts pending
// and moves exactly once to approved, rejected, or cancelled; all three are
// terminal.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// Status defines approval request states
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status permits no further transitions
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// RequestType identifies what kind of change a request covers
type RequestType string

const (
	RequestTypeSettlementApproval RequestType = "settlement_approval"
	RequestTypeRuleChange         RequestType = "rule_change"
)

// Priority ranks a request in the approver's inbox
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// HighRiskThreshold is the risk score above which a request must be surfaced
// to the approver before the decision is recorded. The state machine itself
// never blocks on it.
const HighRiskThreshold = 70

// Common errors
var (
	ErrEmptyRejectionComment = errors.New("rejection requires a non-empty comment")
)

// ErrInvalidTransition indicates an operation not permitted from the
// request's current status
type ErrInvalidTransition struct {
	RequestID uuid.UUID
	Status    Status
	Attempted audit.Action
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("approval request %s is %s and cannot be %s", e.RequestID, e.Status, e.Attempted)
}

// ErrSelfApproval indicates the requestor attempting to approve their own
// request
type ErrSelfApproval struct {
	Requestor shared.Actor
}

func (e ErrSelfApproval) Error() string {
	return "requestor " + e.Requestor.ID.String() + " cannot approve their own request"
}

// ErrNotRequestor indicates someone other than the requestor attempting to
// cancel a request
type ErrNotRequestor struct {
	Actor shared.Actor
}

func (e ErrNotRequestor) Error() string {
	return "only the requestor may cancel, not " + e.Actor.ID.String()
}

// ChangeSet captures the before/after diff of the entity under approval
type ChangeSet struct {
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// Metadata links a request to the entity it covers
type Metadata struct {
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	RiskScore  *int      `json:"risk_score,omitempty"`
	Amount     *int64    `json:"amount,omitempty"` // Stored in cents/minor units
}

// Request is a maker-checker approval request
type Request struct {
	ID              uuid.UUID       `json:"id"`
	Type            RequestType     `json:"type"`
	Status          Status          `json:"status"`
	Priority        Priority        `json:"priority"`
	Requestor       shared.Actor    `json:"requestor"`
	Approver        *shared.Actor   `json:"approver,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Changes         *ChangeSet      `json:"changes,omitempty"`
	Metadata        Metadata        `json:"metadata"`
	DecisionComment string          `json:"decision_comment,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Version         int             `json:"version"` // For optimistic locking
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	audit.Trail
}

// NewRequest creates a pending approval request and records its creation in
// the audit trail
func NewRequest(reqType RequestType, priority Priority, requestor shared.Actor, payload json.RawMessage, metadata Metadata) *Request {
	now := time.Now().UTC()
	r := &Request{
		ID:        uuid.New(),
		Type:      reqType,
		Status:    StatusPending,
		Priority:  priority,
		Requestor: requestor,
		Payload:   payload,
		Metadata:  metadata,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Append(audit.ActionCreated, requestor, "", nil)
	r.Log(audit.LogLevelInfo, string(reqType)+" request created")
	return r
}

// HighRisk reports whether the request carries a risk score above the
// surfacing threshold
func (r *Request) HighRisk() bool {
	return r.Metadata.RiskScore != nil && *r.Metadata.RiskScore > HighRiskThreshold
}

// Approve moves the request from pending to approved. The approver must be a
// different actor than the requestor. ApprovedAt is set exactly once.
func (r *Request) Approve(approver shared.Actor, comment string) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition{RequestID: r.ID, Status: r.Status, Attempted: audit.ActionApproved}
	}
	if approver.ID == r.Requestor.ID {
		return ErrSelfApproval{Requestor: r.Requestor}
	}

	now := time.Now().UTC()
	r.Status = StatusApproved
	r.Approver = &approver
	r.ApprovedAt = &now
	r.DecisionComment = comment
	r.touch(now)

	r.Append(audit.ActionApproved, approver, comment, nil)
	r.Log(audit.LogLevelInfo, "request approved by "+approver.Name)
	return nil
}

// Reject moves the request from pending to rejected. A non-empty comment is
// mandatory; rejection without a reason is a validation error.
func (r *Request) Reject(actor shared.Actor, comment string) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition{RequestID: r.ID, Status: r.Status, Attempted: audit.ActionRejected}
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ErrEmptyRejectionComment
	}

	now := time.Now().UTC()
	r.Status = StatusRejected
	r.RejectedAt = &now
	r.DecisionComment = comment
	r.touch(now)

	r.Append(audit.ActionRejected, actor, comment, nil)
	r.Log(audit.LogLevelWarning, "request rejected by "+actor.Name)
	return nil
}

// Cancel moves the request from pending to cancelled. Only the original
// requestor may cancel; no approver is ever assigned.
func (r *Request) Cancel(actor shared.Actor) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition{RequestID: r.ID, Status: r.Status, Attempted: audit.ActionCancelled}
	}
	if actor.ID != r.Requestor.ID {
		return ErrNotRequestor{Actor: actor}
	}

	now := time.Now().UTC()
	r.Status = StatusCancelled
	r.CancelledAt = &now
	r.touch(now)

	r.Append(audit.ActionCancelled, actor, "", nil)
	r.Log(audit.LogLevelInfo, "request cancelled by requestor")
	return nil
}

func (r *Request) touch(now time.Time) {
	r.UpdatedAt = now
	r.Version++
}
