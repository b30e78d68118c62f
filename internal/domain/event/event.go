// Package event defines the side-effect-free transition event records the
// notification collaborator consumes. The core never calls notification
// services directly; it emits these records through the outbox.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// Type identifies what transition an event records
type Type string

const (
	TypeRunPendingApproval Type = "settlement_run.pending_approval"
	TypeRunApproved        Type = "settlement_run.approved"
	TypeRunCompleted       Type = "settlement_run.completed"
	TypeRunFailed          Type = "settlement_run.failed"
	TypeApprovalRequested  Type = "approval.requested"
	TypeApprovalApproved   Type = "approval.approved"
	TypeApprovalRejected   Type = "approval.rejected"
	TypeApprovalCancelled  Type = "approval.cancelled"
)

// Event is an immutable record of one state transition
type Event struct {
	ID            uuid.UUID         `json:"id"`
	Type          Type              `json:"type"`
	EntityType    string            `json:"entity_type"`
	EntityID      uuid.UUID         `json:"entity_id"`
	Actor         shared.Actor      `json:"actor"`
	Details       map[string]string `json:"details,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// New creates a transition event record
func New(eventType Type, entityType string, entityID uuid.UUID, actor shared.Actor, details map[string]string) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Details:    details,
		OccurredAt: time.Now().UTC(),
	}
}
