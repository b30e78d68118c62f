package aggregation

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	calc, err := NewCalculator(CalculatorConfig{Size: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(calc.Release)
	return calc
}

func newRun(t *testing.T, partners []settlement.PartnerRef) *settlement.Run {
	t.Helper()
	run, err := settlement.NewRun("SR-2026-08",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		"USD", shared.PaymentMethodBankTransfer,
		shared.Actor{ID: uuid.New(), Name: "Maker"}, partners)
	require.NoError(t, err)
	return run
}

func TestCalculator_CalculateRun(t *testing.T) {
	ctx := context.Background()

	t.Run("TwoPartnerScenario", func(t *testing.T) {
		partnerA := settlement.PartnerRef{ID: uuid.New(), Name: "Partner A", Type: shared.PartnerTypeMerchant}
		partnerB := settlement.PartnerRef{ID: uuid.New(), Name: "Partner B", Type: shared.PartnerTypeMarketplace}
		run := newRun(t, []settlement.PartnerRef{partnerA, partnerB})

		// Partner A sums to gross=1000.00 fee=30.00, partner B to
		// gross=500.00 fee=15.00, both with zero adjustments.
		transactions := map[uuid.UUID][]shared.Transaction{
			partnerA.ID: {
				txn(shared.TransactionTypeSale, 70000, 2100, "USD"),
				txn(shared.TransactionTypeSale, 30000, 900, "USD"),
			},
			partnerB.ID: {
				txn(shared.TransactionTypeSale, 50000, 1500, "USD"),
			},
		}

		calc := newTestCalculator(t)
		breakdown, err := calc.CalculateRun(ctx, run, transactions)
		require.NoError(t, err)
		require.Len(t, breakdown, 2)

		// Breakdown order matches the run's partner order.
		assert.Equal(t, partnerA.ID, breakdown[0].PartnerID)
		assert.Equal(t, partnerB.ID, breakdown[1].PartnerID)

		summary := settlement.Summarize(breakdown)
		assert.Equal(t, int64(150000), summary.TotalGrossAmount)
		assert.Equal(t, int64(4500), summary.TotalFees)
		assert.Equal(t, int64(145500), summary.TotalNetAmount)
		assert.Equal(t, 2, summary.PartnerCount)
	})

	t.Run("DeterministicAcrossRepeatedRuns", func(t *testing.T) {
		partners := make([]settlement.PartnerRef, 20)
		transactions := make(map[uuid.UUID][]shared.Transaction, len(partners))
		for i := range partners {
			partners[i] = settlement.PartnerRef{ID: uuid.New(), Name: "P", Type: shared.PartnerTypeMerchant}
			for j := 0; j < 25; j++ {
				transactions[partners[i].ID] = append(transactions[partners[i].ID],
					txn(shared.TransactionTypeSale, int64(100+i*j), int64(i), "USD"))
			}
		}
		run := newRun(t, partners)
		calc := newTestCalculator(t)

		first, err := calc.CalculateRun(ctx, run, transactions)
		require.NoError(t, err)
		firstSummary := settlement.Summarize(first)

		for i := 0; i < 10; i++ {
			again, err := calc.CalculateRun(ctx, run, transactions)
			require.NoError(t, err)
			assert.Equal(t, firstSummary, settlement.Summarize(again))
			for j := range first {
				assert.Equal(t, first[j].PartnerID, again[j].PartnerID)
				assert.Equal(t, first[j].NetAmount, again[j].NetAmount)
			}
		}
	})

	t.Run("CurrencyMismatchFailsWholeRun", func(t *testing.T) {
		partnerA := settlement.PartnerRef{ID: uuid.New(), Name: "Partner A", Type: shared.PartnerTypeMerchant}
		partnerB := settlement.PartnerRef{ID: uuid.New(), Name: "Partner B", Type: shared.PartnerTypeMerchant}
		run := newRun(t, []settlement.PartnerRef{partnerA, partnerB})

		transactions := map[uuid.UUID][]shared.Transaction{
			partnerA.ID: {txn(shared.TransactionTypeSale, 10000, 300, "USD")},
			partnerB.ID: {txn(shared.TransactionTypeSale, 5000, 150, "EUR")},
		}

		calc := newTestCalculator(t)
		breakdown, err := calc.CalculateRun(ctx, run, transactions)

		var mismatch ErrCurrencyMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Nil(t, breakdown)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		partner := settlement.PartnerRef{ID: uuid.New(), Name: "Partner A", Type: shared.PartnerTypeMerchant}
		run := newRun(t, []settlement.PartnerRef{partner})

		cancelledCtx, cancel := context.WithCancel(ctx)
		cancel()

		calc := newTestCalculator(t)
		_, err := calc.CalculateRun(cancelledCtx, run, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("PartnerWithNoTransactions", func(t *testing.T) {
		partner := settlement.PartnerRef{ID: uuid.New(), Name: "Quiet Partner", Type: shared.PartnerTypeAgent}
		run := newRun(t, []settlement.PartnerRef{partner})

		calc := newTestCalculator(t)
		breakdown, err := calc.CalculateRun(ctx, run, map[uuid.UUID][]shared.Transaction{})
		require.NoError(t, err)
		require.Len(t, breakdown, 1)
		assert.Equal(t, int64(0), breakdown[0].NetAmount)
	})
}
