package shared

// TransactionType defines the kind of partner transaction being settled
type TransactionType string

const (
	TransactionTypeSale       TransactionType = "SALE"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeChargeback TransactionType = "CHARGEBACK"
	TransactionTypeFee        TransactionType = "FEE"
)

// IsValid reports whether the transaction type is one of the known kinds
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeRefund, TransactionTypeChargeback, TransactionTypeFee:
		return true
	}
	return false
}

// PartnerType classifies the partner receiving a settlement
type PartnerType string

const (
	PartnerTypeMerchant    PartnerType = "MERCHANT"
	PartnerTypeMarketplace PartnerType = "MARKETPLACE"
	PartnerTypeAgent       PartnerType = "AGENT"
)

// PaymentMethod defines how a settlement is disbursed
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodWire         PaymentMethod = "WIRE"
	PaymentMethodWallet       PaymentMethod = "WALLET"
)

// OutboxStatus defines event publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
