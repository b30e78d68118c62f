// Package testfixtures generates deterministic partner and transaction data
// for tests. Generators are seeded so a test failure reproduces with the same
// inputs every run.
package testfixtures

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// Generator produces fixture data from a seeded random source.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator seeded for reproducible output.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

var partnerTypes = []shared.PartnerType{
	shared.PartnerTypeMerchant,
	shared.PartnerTypeMarketplace,
	shared.PartnerTypeAgent,
}

// Partners generates n partner references with stable IDs and names.
func (g *Generator) Partners(n int) []settlement.PartnerRef {
	partners := make([]settlement.PartnerRef, 0, n)
	for i := 0; i < n; i++ {
		partners = append(partners, settlement.PartnerRef{
			ID:   g.uuid(),
			Name: fmt.Sprintf("Partner %02d", i+1),
			Type: partnerTypes[i%len(partnerTypes)],
		})
	}
	return partners
}

// Transactions generates n transactions for a partner within the given
// period. Amounts are positive minor units with a roughly 3% fee; most
// transactions are sales with an occasional refund or chargeback mixed in.
func (g *Generator) Transactions(n int, currency string, periodStart, periodEnd time.Time) []shared.Transaction {
	span := periodEnd.Sub(periodStart)
	transactions := make([]shared.Transaction, 0, n)
	for i := 0; i < n; i++ {
		amount := int64(g.rng.Intn(500_00) + 1_00)
		txnType := shared.TransactionTypeSale
		switch g.rng.Intn(10) {
		case 0:
			txnType = shared.TransactionTypeRefund
		case 1:
			txnType = shared.TransactionTypeChargeback
		}
		transactions = append(transactions, shared.Transaction{
			ID:              g.uuid(),
			TransactionDate: periodStart.Add(time.Duration(g.rng.Int63n(int64(span)))),
			Type:            txnType,
			Amount:          amount,
			Fee:             amount * 3 / 100,
			Currency:        currency,
		})
	}
	return transactions
}

// TransactionsByPartner generates perPartner transactions for every partner,
// keyed by partner ID.
func (g *Generator) TransactionsByPartner(partners []settlement.PartnerRef, perPartner int, currency string, periodStart, periodEnd time.Time) map[uuid.UUID][]shared.Transaction {
	byPartner := make(map[uuid.UUID][]shared.Transaction, len(partners))
	for _, p := range partners {
		byPartner[p.ID] = g.Transactions(perPartner, currency, periodStart, periodEnd)
	}
	return byPartner
}

func (g *Generator) uuid() uuid.UUID {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		panic(err)
	}
	return id
}
