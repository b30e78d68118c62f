package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/settlement-service/internal/domain/shared"
)

func TestTrail_Append(t *testing.T) {
	actor := shared.Actor{ID: uuid.New(), Name: "Jane Maker"}

	t.Run("SequencesEntries", func(t *testing.T) {
		trail := &Trail{}

		before := time.Now().UTC()
		first := trail.Append(ActionCreated, actor, "", nil)
		second := trail.Append(ActionSubmitted, actor, "ready for review", nil)
		after := time.Now().UTC()

		require.Len(t, trail.History, 2)
		assert.Equal(t, int64(1), first.ID)
		assert.Equal(t, int64(2), second.ID)
		assert.Equal(t, ActionCreated, first.Action)
		assert.Equal(t, "ready for review", second.Comment)
		assert.False(t, first.Timestamp.Before(before))
		assert.False(t, second.Timestamp.After(after))
	})

	t.Run("EachAppendGrowsHistoryByOne", func(t *testing.T) {
		trail := &Trail{}
		for i := 0; i < 5; i++ {
			lenBefore := len(trail.History)
			trail.Append(ActionCommented, actor, "note", nil)
			assert.Equal(t, lenBefore+1, len(trail.History))
		}
	})

	t.Run("CarriesMetadata", func(t *testing.T) {
		trail := &Trail{}
		entry := trail.Append(ActionFailed, actor, "", map[string]string{"reason": "currency mismatch"})
		assert.Equal(t, "currency mismatch", entry.Metadata["reason"])
	})
}

func TestTrail_Log(t *testing.T) {
	trail := &Trail{}

	info := trail.Log(LogLevelInfo, "request approved")
	warn := trail.Log(LogLevelWarning, "request rejected")

	require.Len(t, trail.Logs, 2)
	assert.Equal(t, int64(1), info.ID)
	assert.Equal(t, int64(2), warn.ID)
	assert.Equal(t, LogLevelWarning, warn.Level)
}

func TestTrail_OrderedHistory(t *testing.T) {
	actor := shared.Actor{ID: uuid.New(), Name: "Ops"}
	now := time.Now().UTC()

	// Build a trail with shuffled timestamps and a timestamp tie to exercise
	// the ID tie-break.
	trail := &Trail{History: []HistoryEntry{
		{ID: 3, Timestamp: now.Add(time.Minute), Action: ActionApproved, Actor: actor},
		{ID: 1, Timestamp: now, Action: ActionCreated, Actor: actor},
		{ID: 2, Timestamp: now, Action: ActionSubmitted, Actor: actor},
	}}

	ordered := trail.OrderedHistory()
	require.Len(t, ordered, 3)
	assert.Equal(t, int64(1), ordered[0].ID)
	assert.Equal(t, int64(2), ordered[1].ID)
	assert.Equal(t, int64(3), ordered[2].ID)

	// The trail itself is untouched.
	assert.Equal(t, int64(3), trail.History[0].ID)
}
