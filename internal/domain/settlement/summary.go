package settlement

import (
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// TypeBreakdown aggregates settlements of one partner type
type TypeBreakdown struct {
	Count       int   `json:"count"`
	GrossAmount int64 `json:"gross_amount"`
	NetAmount   int64 `json:"net_amount"`
}

// MethodBreakdown aggregates paid settlements by payment method
type MethodBreakdown struct {
	Count     int   `json:"count"`
	NetAmount int64 `json:"net_amount"`
}

// Summary is the run-level financial rollup derived from a run's partner
// settlements. It is never edited independently; every field equals the sum
// of the corresponding partner settlement fields.
type Summary struct {
	TotalGrossAmount  int64                                    `json:"total_gross_amount"`
	TotalFees         int64                                    `json:"total_fees"`
	TotalAdjustments  int64                                    `json:"total_adjustments"`
	TotalNetAmount    int64                                    `json:"total_net_amount"`
	TotalTransactions int                                      `json:"total_transactions"`
	PartnerCount      int                                      `json:"partner_count"`
	ByPartnerType     map[shared.PartnerType]TypeBreakdown     `json:"by_partner_type"`
	ByStatus          map[SettlementStatus]int                 `json:"by_status"`
	ByPaymentMethod   map[shared.PaymentMethod]MethodBreakdown `json:"by_payment_method"`
}

// Summarize is the single place run-level aggregation happens: a pure
// reduction over the partner settlements. Identical input always yields an
// identical summary; integer minor-unit arithmetic keeps sums exact.
func Summarize(breakdown []*PartnerSettlement) Summary {
	summary := Summary{
		PartnerCount:    len(breakdown),
		ByPartnerType:   make(map[shared.PartnerType]TypeBreakdown),
		ByStatus:        make(map[SettlementStatus]int),
		ByPaymentMethod: make(map[shared.PaymentMethod]MethodBreakdown),
	}

	for _, ps := range breakdown {
		summary.TotalGrossAmount += ps.GrossAmount
		summary.TotalFees += ps.Fees
		summary.TotalAdjustments += ps.Adjustments
		summary.TotalNetAmount += ps.NetAmount
		summary.TotalTransactions += ps.TransactionCount

		byType := summary.ByPartnerType[ps.PartnerType]
		byType.Count++
		byType.GrossAmount += ps.GrossAmount
		byType.NetAmount += ps.NetAmount
		summary.ByPartnerType[ps.PartnerType] = byType

		summary.ByStatus[ps.Status]++

		if ps.PaymentDetails != nil {
			byMethod := summary.ByPaymentMethod[ps.PaymentDetails.Method]
			byMethod.Count++
			byMethod.NetAmount += ps.NetAmount
			summary.ByPaymentMethod[ps.PaymentDetails.Method] = byMethod
		}
	}

	return summary
}
