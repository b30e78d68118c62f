// Package audit provides the append-only history and log trail shared by the
// settlement run and approval state machines. Entries are sequenced per
// entity and timestamped at the time of the mutating call.
package audit

import (
	"sort"
	"time"

	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// Action identifies what a history entry records
type Action string

const (
	ActionCreated    Action = "created"
	ActionSubmitted  Action = "submitted"
	ActionApproved   Action = "approved"
	ActionRejected   Action = "rejected"
	ActionReassigned Action = "reassigned"
	ActionCancelled  Action = "cancelled"
	ActionCommented  Action = "commented"
	ActionCompleted  Action = "completed"
	ActionFailed     Action = "failed"
)

// LogLevel defines log entry severity
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// HistoryEntry is one immutable record in an entity's audit history
type HistoryEntry struct {
	ID        int64             `json:"id" bson:"id"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	Action    Action            `json:"action" bson:"action"`
	Actor     shared.Actor      `json:"actor" bson:"actor"`
	Comment   string            `json:"comment,omitempty" bson:"comment,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// LogEntry is one immutable operational log record attached to an entity
type LogEntry struct {
	ID        int64     `json:"id" bson:"id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Level     LogLevel  `json:"level" bson:"level"`
	Message   string    `json:"message" bson:"message"`
}

// Trail holds the append-only history and logs of one entity. Entry IDs are a
// monotonically increasing sequence per entity; timestamps come from the
// wall clock at append time, never from the caller.
type Trail struct {
	History []HistoryEntry `json:"history"`
	Logs    []LogEntry     `json:"logs"`
}

// Append records a history entry and returns it. The entry ID continues the
// entity's sequence.
func (t *Trail) Append(action Action, actor shared.Actor, comment string, metadata map[string]string) HistoryEntry {
	entry := HistoryEntry{
		ID:        int64(len(t.History)) + 1,
		Timestamp: time.Now().UTC(),
		Action:    action,
		Actor:     actor,
		Comment:   comment,
		Metadata:  metadata,
	}
	t.History = append(t.History, entry)
	return entry
}

// Log records an operational log entry and returns it
func (t *Trail) Log(level LogLevel, message string) LogEntry {
	entry := LogEntry{
		ID:        int64(len(t.Logs)) + 1,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
	}
	t.Logs = append(t.Logs, entry)
	return entry
}

// OrderedHistory returns a copy of the history in canonical audit order:
// ascending by timestamp, ties broken by ID.
func (t *Trail) OrderedHistory() []HistoryEntry {
	ordered := make([]HistoryEntry, len(t.History))
	copy(ordered, t.History)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return ordered
}
