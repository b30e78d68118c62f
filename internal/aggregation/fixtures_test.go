package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/testfixtures"
)

// Exercises the calculator against generated data and checks the breakdown
// against independently computed totals.
func TestCalculator_GeneratedWorkload(t *testing.T) {
	ctx := context.Background()
	gen := testfixtures.NewGenerator(42)

	partners := gen.Partners(8)
	run := newRun(t, partners)
	transactions := gen.TransactionsByPartner(partners, 40, "USD", run.PeriodStart, run.PeriodEnd)

	calc := newTestCalculator(t)
	breakdown, err := calc.CalculateRun(ctx, run, transactions)
	require.NoError(t, err)
	require.Len(t, breakdown, len(partners))

	for i, p := range partners {
		var gross, fees int64
		for _, txn := range transactions[p.ID] {
			gross += txn.Amount
			fees += txn.Fee
		}

		ps := breakdown[i]
		assert.Equal(t, p.ID, ps.PartnerID)
		assert.Equal(t, gross, ps.GrossAmount)
		assert.Equal(t, fees, ps.Fees)
		assert.Equal(t, gross-fees, ps.NetAmount)
		assert.Equal(t, len(transactions[p.ID]), ps.TransactionCount)
	}

	summary := settlement.Summarize(breakdown)
	assert.Equal(t, len(partners), summary.PartnerCount)
	assert.Equal(t, summary.TotalGrossAmount-summary.TotalFees, summary.TotalNetAmount)
}

func TestGenerator_Deterministic(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	first := testfixtures.NewGenerator(7)
	second := testfixtures.NewGenerator(7)

	assert.Equal(t, first.Partners(5), second.Partners(5))
	assert.Equal(t,
		first.Transactions(30, "EUR", start, end),
		second.Transactions(30, "EUR", start, end),
	)
}
