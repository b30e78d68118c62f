// Package aggregation rolls per-transaction amounts up into partner
// settlements and run summaries. All arithmetic is exact integer minor-unit
// math; rounding happens only at presentation boundaries, never here.
package aggregation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// ErrCurrencyMismatch indicates a transaction denominated in a currency other
// than the run's. Aggregation for the partner is discarded entirely.
type ErrCurrencyMismatch struct {
	RunCurrency         string
	TransactionCurrency string
	TransactionID       uuid.UUID
}

func (e ErrCurrencyMismatch) Error() string {
	return fmt.Sprintf("transaction %s is in %s, run is in %s", e.TransactionID, e.TransactionCurrency, e.RunCurrency)
}

// AggregatePartner computes one partner's settlement from its transaction
// set: grossAmount = sum of amounts, fees = sum of fees, netAmount = gross -
// fees + adjustments. All-or-nothing per partner: on any invalid transaction
// nothing is returned and no partial sums escape.
func AggregatePartner(runID uuid.UUID, partner settlement.PartnerRef, runCurrency string, transactions []shared.Transaction, adjustments int64) (*settlement.PartnerSettlement, error) {
	var gross, fees int64
	for _, txn := range transactions {
		if txn.Currency != runCurrency {
			return nil, ErrCurrencyMismatch{
				RunCurrency:         runCurrency,
				TransactionCurrency: txn.Currency,
				TransactionID:       txn.ID,
			}
		}
		if !txn.Type.IsValid() {
			return nil, fmt.Errorf("transaction %s: %w", txn.ID, shared.ErrInvalidTransactionType)
		}
		gross += txn.Amount
		fees += txn.Fee
	}

	ps := settlement.NewPartnerSettlement(runID, partner, runCurrency)
	ps.GrossAmount = gross
	ps.Fees = fees
	ps.Adjustments = adjustments
	ps.TransactionCount = len(transactions)
	ps.Recalculate()
	return ps, nil
}
