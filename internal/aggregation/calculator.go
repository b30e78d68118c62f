package aggregation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// Calculator aggregates a run's partners concurrently on a worker pool.
// Partners are independent, so their aggregation is embarrassingly parallel;
// the run-level result only becomes visible once every partner has finished.
type Calculator struct {
	pool   *ants.Pool
	logger *slog.Logger
}

type CalculatorConfig struct {
	Size int
}

func NewCalculator(config CalculatorConfig, logger *slog.Logger) (*Calculator, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &Calculator{
		pool:   pool,
		logger: logger,
	}, nil
}

// CalculateRun aggregates every partner of the run from its transaction set.
// Results come back in breakdown order, so identical inputs always produce
// identical output regardless of worker scheduling. The first partner error
// fails the whole run; no partial breakdown is returned.
func (c *Calculator) CalculateRun(ctx context.Context, run *settlement.Run, transactions map[uuid.UUID][]shared.Transaction) ([]*settlement.PartnerSettlement, error) {
	results := make([]*settlement.PartnerSettlement, len(run.Breakdown))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i, ps := range run.Breakdown {
		i := i
		partner := settlement.PartnerRef{ID: ps.PartnerID, Name: ps.PartnerName, Type: ps.PartnerType}
		adjustments := ps.Adjustments
		partnerTxns := transactions[ps.PartnerID]

		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				setErr(ctx.Err())
				return
			}

			aggregated, err := AggregatePartner(run.ID, partner, run.Currency, partnerTxns, adjustments)
			if err != nil {
				c.logger.Error("Partner aggregation failed",
					"run_id", run.ID.String(),
					"partner_id", partner.ID.String(),
					"error", err,
				)
				setErr(err)
				return
			}
			results[i] = aggregated
		})
		if err != nil {
			wg.Done()
			setErr(err)
			break
		}
	}

	// Barrier: the summary reduction must never see a partial breakdown.
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	c.logger.Info("Run aggregation completed",
		"run_id", run.ID.String(),
		"partner_count", len(results),
	)
	return results, nil
}

// Release gracefully shuts down the worker pool
func (c *Calculator) Release() {
	c.logger.Info("Shutting down aggregation worker pool", "running_workers", c.pool.Running())
	c.pool.Release()
}

// Running returns the number of running workers in the pool
func (c *Calculator) Running() int {
	return c.pool.Running()
}

// Capacity returns the capacity of the worker pool
func (c *Calculator) Capacity() int {
	return c.pool.Cap()
}
