package aggregation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

func txn(txnType shared.TransactionType, amount, fee int64, currency string) shared.Transaction {
	return shared.Transaction{
		ID:              uuid.New(),
		TransactionDate: time.Now().UTC(),
		Type:            txnType,
		Amount:          amount,
		Fee:             fee,
		Currency:        currency,
	}
}

func merchantRef() settlement.PartnerRef {
	return settlement.PartnerRef{ID: uuid.New(), Name: "Acme Stores", Type: shared.PartnerTypeMerchant}
}

func TestAggregatePartner(t *testing.T) {
	runID := uuid.New()

	t.Run("SumsGrossFeesAndNet", func(t *testing.T) {
		transactions := []shared.Transaction{
			txn(shared.TransactionTypeSale, 60000, 1800, "USD"),
			txn(shared.TransactionTypeSale, 45000, 1350, "USD"),
			txn(shared.TransactionTypeRefund, -5000, -150, "USD"),
		}

		ps, err := AggregatePartner(runID, merchantRef(), "USD", transactions, 0)
		require.NoError(t, err)

		assert.Equal(t, int64(100000), ps.GrossAmount)
		assert.Equal(t, int64(3000), ps.Fees)
		assert.Equal(t, int64(97000), ps.NetAmount)
		assert.Equal(t, 3, ps.TransactionCount)
		assert.Equal(t, settlement.SettlementStatusPending, ps.Status)
	})

	t.Run("AdjustmentsFlowIntoNet", func(t *testing.T) {
		transactions := []shared.Transaction{txn(shared.TransactionTypeSale, 10000, 300, "EUR")}

		ps, err := AggregatePartner(runID, merchantRef(), "EUR", transactions, -500)
		require.NoError(t, err)

		assert.Equal(t, int64(-500), ps.Adjustments)
		assert.Equal(t, ps.GrossAmount-ps.Fees+ps.Adjustments, ps.NetAmount)
		assert.Equal(t, int64(9200), ps.NetAmount)
	})

	t.Run("CurrencyMismatchIsAllOrNothing", func(t *testing.T) {
		bad := txn(shared.TransactionTypeSale, 5000, 150, "EUR")
		transactions := []shared.Transaction{
			txn(shared.TransactionTypeSale, 60000, 1800, "USD"),
			bad,
		}

		ps, err := AggregatePartner(runID, merchantRef(), "USD", transactions, 0)

		var mismatch ErrCurrencyMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "USD", mismatch.RunCurrency)
		assert.Equal(t, "EUR", mismatch.TransactionCurrency)
		assert.Equal(t, bad.ID, mismatch.TransactionID)
		assert.Nil(t, ps, "no partial sums escape")
	})

	t.Run("InvalidTransactionType", func(t *testing.T) {
		transactions := []shared.Transaction{txn("TRANSFER", 1000, 0, "USD")}

		_, err := AggregatePartner(runID, merchantRef(), "USD", transactions, 0)
		assert.ErrorIs(t, err, shared.ErrInvalidTransactionType)
	})

	t.Run("EmptyTransactionSet", func(t *testing.T) {
		ps, err := AggregatePartner(runID, merchantRef(), "USD", nil, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), ps.GrossAmount)
		assert.Equal(t, int64(0), ps.NetAmount)
		assert.Equal(t, 0, ps.TransactionCount)
	})

	t.Run("RepeatedAggregationHasNoDrift", func(t *testing.T) {
		transactions := make([]shared.Transaction, 0, 1000)
		for i := 0; i < 1000; i++ {
			transactions = append(transactions, txn(shared.TransactionTypeSale, 199, 7, "USD"))
		}

		first, err := AggregatePartner(runID, merchantRef(), "USD", transactions, 33)
		require.NoError(t, err)
		assert.Equal(t, int64(199000), first.GrossAmount)
		assert.Equal(t, int64(7000), first.Fees)
		assert.Equal(t, int64(192033), first.NetAmount)

		for i := 0; i < 50; i++ {
			again, err := AggregatePartner(runID, merchantRef(), "USD", transactions, 33)
			require.NoError(t, err)
			assert.Equal(t, first.NetAmount, again.NetAmount)
		}
	})
}
