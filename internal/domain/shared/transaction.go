package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidCurrencyFormat  = errors.New("currency must be a 3-letter code")
)

// Actor identifies the user performing a mutating operation. The service does
// not authenticate; it records whoever the caller says acted.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// SystemActor attributes mutations performed by the service itself, such as
// recording an aggregation failure
var SystemActor = Actor{Name: "system"}

// Transaction is an immutable partner transaction supplied by the ingestion
// collaborator. Amounts are stored in cents/minor units.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	TransactionDate time.Time       `json:"transaction_date"`
	Type            TransactionType `json:"type"`
	Amount          int64           `json:"amount"`
	Fee             int64           `json:"fee"`
	Currency        string          `json:"currency"`
}

// NetAmount is the transaction amount after its fee
func (t Transaction) NetAmount() int64 {
	return t.Amount - t.Fee
}

// CalculationRequest defines a Kafka message asking the worker to aggregate a
// settlement run
type CalculationRequest struct {
	RunID         uuid.UUID `json:"run_id"`
	RequestedBy   Actor     `json:"requested_by"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}
