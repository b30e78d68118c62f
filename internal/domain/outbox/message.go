package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/event"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// Message stores a transition event for reliable publishing. Events are
// written to the outbox in the same database transaction as the state change
// they record, then published to Kafka by the poller.
type Message struct {
	ID            int64               `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	EntityID      uuid.UUID           `json:"entity_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(ev *event.Event) (*Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:   ev.ID,
		EntityID:  ev.EntityID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetEvent extracts the transition event from the payload
func (m *Message) GetEvent() (*event.Event, error) {
	var ev event.Event
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
