package settlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// SettlementStatus defines partner settlement payout states
type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "PENDING"
	SettlementStatusPaid    SettlementStatus = "PAID"
)

// PaymentDetails records how a partner settlement was paid out. Present only
// once the settlement is PAID.
type PaymentDetails struct {
	Method    shared.PaymentMethod `json:"method"`
	Reference string               `json:"reference"`
	PaidAt    time.Time            `json:"paid_at"`
}

// PartnerRef identifies a partner participating in a run
type PartnerRef struct {
	ID   uuid.UUID          `json:"id"`
	Name string             `json:"name"`
	Type shared.PartnerType `json:"type"`
}

// PartnerSettlement is one partner's aggregated financial position within a
// settlement run. Amounts are stored in cents/minor units. NetAmount is
// always recomputed from the other fields, never set independently.
type PartnerSettlement struct {
	RunID            uuid.UUID          `json:"run_id"`
	PartnerID        uuid.UUID          `json:"partner_id"`
	PartnerName      string             `json:"partner_name"`
	PartnerType      shared.PartnerType `json:"partner_type"`
	Currency         string             `json:"currency"`
	GrossAmount      int64              `json:"gross_amount"`
	Fees             int64              `json:"fees"`
	Adjustments      int64              `json:"adjustments"`
	NetAmount        int64              `json:"net_amount"`
	TransactionCount int                `json:"transaction_count"`
	Status           SettlementStatus   `json:"status"`
	PaymentDetails   *PaymentDetails    `json:"payment_details,omitempty"`
}

// NewPartnerSettlement creates an empty pending settlement for a partner in
// the given run
func NewPartnerSettlement(runID uuid.UUID, partner PartnerRef, currency string) *PartnerSettlement {
	return &PartnerSettlement{
		RunID:       runID,
		PartnerID:   partner.ID,
		PartnerName: partner.Name,
		PartnerType: partner.Type,
		Currency:    currency,
		Status:      SettlementStatusPending,
	}
}

// Recalculate restores the net amount invariant after gross, fees, or
// adjustments change
func (p *PartnerSettlement) Recalculate() {
	p.NetAmount = p.GrossAmount - p.Fees + p.Adjustments
}

// MarkPaid flips the settlement to PAID with the given payment details.
// Already-paid settlements are left untouched so run completion stays
// idempotent.
func (p *PartnerSettlement) MarkPaid(method shared.PaymentMethod, reference string, paidAt time.Time) {
	if p.Status == SettlementStatusPaid {
		return
	}
	p.Status = SettlementStatusPaid
	p.PaymentDetails = &PaymentDetails{
		Method:    method,
		Reference: reference,
		PaidAt:    paidAt,
	}
}
