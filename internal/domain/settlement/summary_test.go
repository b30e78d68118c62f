package settlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/finrecon/settlement-service/internal/domain/shared"
)

func paidSettlement(partnerType shared.PartnerType, gross, fees, adjustments int64, method shared.PaymentMethod) *PartnerSettlement {
	ps := &PartnerSettlement{
		RunID:            uuid.New(),
		PartnerID:        uuid.New(),
		PartnerType:      partnerType,
		Currency:         "USD",
		GrossAmount:      gross,
		Fees:             fees,
		Adjustments:      adjustments,
		TransactionCount: 1,
		Status:           SettlementStatusPending,
	}
	ps.Recalculate()
	ps.MarkPaid(method, "PAY-TEST", time.Now().UTC())
	return ps
}

func TestSummarize(t *testing.T) {
	t.Run("TotalsEqualSumOfPartnerFields", func(t *testing.T) {
		breakdown := []*PartnerSettlement{
			paidSettlement(shared.PartnerTypeMerchant, 100000, 3000, 0, shared.PaymentMethodBankTransfer),
			paidSettlement(shared.PartnerTypeMerchant, 50000, 1500, 0, shared.PaymentMethodBankTransfer),
			paidSettlement(shared.PartnerTypeAgent, 20000, 400, -100, shared.PaymentMethodWire),
		}

		summary := Summarize(breakdown)

		assert.Equal(t, int64(170000), summary.TotalGrossAmount)
		assert.Equal(t, int64(4900), summary.TotalFees)
		assert.Equal(t, int64(-100), summary.TotalAdjustments)

		var wantNet int64
		for _, ps := range breakdown {
			wantNet += ps.NetAmount
		}
		assert.Equal(t, wantNet, summary.TotalNetAmount)
		assert.Equal(t, len(breakdown), summary.PartnerCount)
		assert.Equal(t, 3, summary.TotalTransactions)

		assert.Equal(t, 2, summary.ByPartnerType[shared.PartnerTypeMerchant].Count)
		assert.Equal(t, int64(150000), summary.ByPartnerType[shared.PartnerTypeMerchant].GrossAmount)
		assert.Equal(t, 1, summary.ByPartnerType[shared.PartnerTypeAgent].Count)

		assert.Equal(t, 3, summary.ByStatus[SettlementStatusPaid])
		assert.Equal(t, 2, summary.ByPaymentMethod[shared.PaymentMethodBankTransfer].Count)
		assert.Equal(t, 1, summary.ByPaymentMethod[shared.PaymentMethodWire].Count)
	})

	t.Run("Deterministic", func(t *testing.T) {
		breakdown := []*PartnerSettlement{
			paidSettlement(shared.PartnerTypeMerchant, 100000, 3000, 250, shared.PaymentMethodBankTransfer),
			paidSettlement(shared.PartnerTypeMarketplace, 50000, 1500, 0, shared.PaymentMethodWallet),
		}

		first := Summarize(breakdown)
		for i := 0; i < 100; i++ {
			assert.Equal(t, first, Summarize(breakdown))
		}
	})

	t.Run("EmptyBreakdown", func(t *testing.T) {
		summary := Summarize(nil)
		assert.Equal(t, int64(0), summary.TotalNetAmount)
		assert.Equal(t, 0, summary.PartnerCount)
		assert.Empty(t, summary.ByPartnerType)
	})

	t.Run("PendingSettlementsHaveNoPaymentMethod", func(t *testing.T) {
		ps := &PartnerSettlement{GrossAmount: 1000, Fees: 10, TransactionCount: 1, Status: SettlementStatusPending}
		ps.Recalculate()

		summary := Summarize([]*PartnerSettlement{ps})

		assert.Equal(t, 1, summary.ByStatus[SettlementStatusPending])
		assert.Empty(t, summary.ByPaymentMethod)
	})
}
