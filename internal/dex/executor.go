package dex

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"swap-enginev1/internal/model"
)

// ErrSettlementFailed is returned when the venue reports the swap did not settle.
var ErrSettlementFailed = errors.New("settlement failed")

// Executor submits a routed swap and waits for simulated settlement.
type Executor struct {
	latency time.Duration

	// failFn decides whether a given execution fails. Nil means every
	// execution settles, matching the venue simulation's happy path.
	failFn func(order model.Order) bool
}

// NewExecutor creates an executor with the given settlement latency.
func NewExecutor(latency time.Duration) *Executor {
	return &Executor{latency: latency}
}

// SetFailFn installs a failure predicate. Used by tests and by the
// FAIL_EXECUTION fault-injection switch.
func (e *Executor) SetFailFn(fn func(order model.Order) bool) {
	e.failFn = fn
}

// ExecuteSwap simulates submission and settlement on the chosen venue.
// It always produces a synthetic transaction id on success.
func (e *Executor) ExecuteSwap(ctx context.Context, venue string, order model.Order, finalPrice float64) (model.ExecutionResult, error) {
	log.Printf("[executor] swapping order %s on %s", order.ID, venue)

	select {
	case <-time.After(e.latency):
	case <-ctx.Done():
		return model.ExecutionResult{}, ctx.Err()
	}

	if e.failFn != nil && e.failFn(order) {
		return model.ExecutionResult{Success: false}, ErrSettlementFailed
	}

	return model.ExecutionResult{
		TxID:          fmt.Sprintf("solana_tx_%08x", rand.Uint32()),
		ExecutedPrice: finalPrice,
		Success:       true,
	}, nil
}
