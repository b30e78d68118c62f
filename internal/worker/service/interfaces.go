package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// CalculationService processes settlement calculation requests consumed from
// Kafka
type CalculationService interface {
	ProcessCalculationRequest(ctx context.Context, request *shared.CalculationRequest) error
}

// RunAggregator turns a run's transaction set into a full partner breakdown
type RunAggregator interface {
	CalculateRun(ctx context.Context, run *settlement.Run, transactions map[uuid.UUID][]shared.Transaction) ([]*settlement.PartnerSettlement, error)
}
