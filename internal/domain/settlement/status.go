package settlement

import (
	"fmt"

	"github.com/google/uuid"
)

// RunStatus defines settlement run lifecycle states
type RunStatus string

const (
	RunStatusDraft           RunStatus = "DRAFT"
	RunStatusCalculating     RunStatus = "CALCULATING"
	RunStatusPendingReview   RunStatus = "PENDING_REVIEW"
	RunStatusPendingApproval RunStatus = "PENDING_APPROVAL"
	RunStatusApproved        RunStatus = "APPROVED"
	RunStatusProcessing      RunStatus = "PROCESSING"
	RunStatusCompleted       RunStatus = "COMPLETED"
	RunStatusFailed          RunStatus = "FAILED"
)

// runTransitions is the explicit transition table for the run state machine.
// Anything not listed here is an invalid transition. Operator force-fail is
// handled separately because it is legal from every non-terminal state.
var runTransitions = map[RunStatus][]RunStatus{
	RunStatusDraft:           {RunStatusCalculating},
	RunStatusCalculating:     {RunStatusPendingReview, RunStatusFailed},
	RunStatusPendingReview:   {RunStatusPendingApproval},
	RunStatusPendingApproval: {RunStatusApproved, RunStatusPendingReview},
	RunStatusApproved:        {RunStatusProcessing, RunStatusFailed},
	RunStatusProcessing:      {RunStatusCompleted, RunStatusFailed},
	RunStatusCompleted:       {},
	RunStatusFailed:          {},
}

// CanTransitionTo reports whether the state machine permits moving to next
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status permits no further transitions
func (s RunStatus) Terminal() bool {
	return len(runTransitions[s]) == 0
}

// ErrInvalidTransition indicates a run transition the state machine does not
// permit
type ErrInvalidTransition struct {
	RunID uuid.UUID
	From  RunStatus
	To    RunStatus
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("settlement run %s cannot transition from %s to %s", e.RunID, e.From, e.To)
}
