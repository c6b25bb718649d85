// Package dex simulates the liquidity side of the system: per-venue quote
// sources, best-route selection across them, and swap settlement.
package dex

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"swap-enginev1/internal/model"
)

// QuoteSource produces a priced offer for a pair after some latency.
// A zero-price quote means "no liquidity", not an error.
type QuoteSource interface {
	Name() string
	GetQuote(ctx context.Context, inputToken, outputToken string, amount float64) (model.Quote, error)
}

// Venue is a simulated liquidity pool. Each venue owns its variance
// interval and fee constant, modeling pools with different spreads.
type Venue struct {
	spec    VenueSpec
	table   PriceTable
	latency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewVenue creates a simulated venue over the given price table. The
// spec's own latency, when set, takes precedence over the shared default.
func NewVenue(spec VenueSpec, table PriceTable, latency time.Duration) *Venue {
	if spec.LatencyMs > 0 {
		latency = time.Duration(spec.LatencyMs) * time.Millisecond
	}
	return &Venue{
		spec:    spec,
		table:   table,
		latency: latency,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the venue identifier, e.g. "RAYDIUM".
func (v *Venue) Name() string { return v.spec.Name }

// GetQuote waits out the simulated network latency and returns a quote with
// the venue's multiplicative perturbation applied. Context cancellation
// aborts the wait.
func (v *Venue) GetQuote(ctx context.Context, inputToken, outputToken string, amount float64) (model.Quote, error) {
	select {
	case <-time.After(v.latency):
	case <-ctx.Done():
		return model.Quote{}, ctx.Err()
	}

	base := v.table.BasePrice(inputToken + "-" + outputToken)
	price := base * v.variance()

	return model.Quote{
		Venue:     v.spec.Name,
		Price:     price,
		Fee:       v.spec.Fee,
		AmountOut: amount * price,
	}, nil
}

func (v *Venue) variance() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.spec.VarianceMin + v.rng.Float64()*(v.spec.VarianceMax-v.spec.VarianceMin)
}
