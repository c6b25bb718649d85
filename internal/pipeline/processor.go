// Package pipeline drives a single order through the execution state
// machine, emitting a notification at every transition boundary.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"swap-enginev1/internal/metrics"
	"swap-enginev1/internal/model"
	"swap-enginev1/internal/notify"
	"swap-enginev1/internal/queue"
)

// BestRouter selects the winning quote across all liquidity venues.
type BestRouter interface {
	FindBestRoute(ctx context.Context, inputToken, outputToken string, amount float64) (model.Quote, error)
}

// SwapExecutor settles a routed swap.
type SwapExecutor interface {
	ExecuteSwap(ctx context.Context, venue string, order model.Order, finalPrice float64) (model.ExecutionResult, error)
}

// Notifier pushes an order update to the current subscriber, if any.
type Notifier interface {
	Notify(orderID string, status model.Status, extra notify.Extra) notify.Outcome
}

// Processor runs the per-order pipeline:
// ROUTING → ROUTING_COMPLETE → BUILDING → SUBMITTED → CONFIRMED | FAILED.
type Processor struct {
	router   BestRouter
	executor SwapExecutor
	notifier Notifier
	prom     *metrics.Metrics
}

// New wires a processor from its collaborators.
func New(router BestRouter, executor SwapExecutor, notifier Notifier, prom *metrics.Metrics) *Processor {
	return &Processor{router: router, executor: executor, notifier: notifier, prom: prom}
}

// Handler adapts the processor to the queue's job contract.
func (p *Processor) Handler() queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		return p.Process(ctx, job)
	}
}

// Process runs one attempt for the job's order. Errors other than the
// reserved-type rejection are retryable; the queue decides what happens next.
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	order := job.Order

	if order.Type != model.OrderTypeMarket {
		p.emit(order.ID, model.StatusFailed, notify.Extra{
			Reason: fmt.Sprintf("order type %s not supported", order.Type),
		})
		return fmt.Errorf("order type %s: %w", order.Type, queue.ErrNonRetryable)
	}

	// Step 1: routing.
	p.emit(order.ID, model.StatusRouting, notify.Extra{})

	routeStart := time.Now()
	best, err := p.router.FindBestRoute(ctx, order.InputToken, order.OutputToken, order.Amount)
	if p.prom != nil {
		p.prom.RoutingDur.Observe(time.Since(routeStart).Seconds())
	}
	if err != nil {
		p.emit(order.ID, model.StatusFailed, notify.Extra{Reason: "routing failed: " + err.Error()})
		if p.prom != nil {
			p.prom.OrdersFailed.Inc()
		}
		return fmt.Errorf("routing order %s: %w", order.ID, err)
	}
	if p.prom != nil {
		p.prom.QuotesSelected.WithLabelValues(best.Venue).Inc()
	}

	p.emit(order.ID, model.StatusRoutingComplete, notify.Extra{Route: best.Venue, Price: best.Price})
	log.Printf("[pipeline] order %s routed to %s at %.6f", order.ID, best.Venue, best.Price)

	// Steps 2–3: build and submit. The simulation has no work here beyond
	// the transitions themselves.
	p.emit(order.ID, model.StatusBuilding, notify.Extra{})
	p.emit(order.ID, model.StatusSubmitted, notify.Extra{})

	// Step 4: settlement.
	execStart := time.Now()
	result, err := p.executor.ExecuteSwap(ctx, best.Venue, order, best.Price)
	if p.prom != nil {
		p.prom.ExecutionDur.Observe(time.Since(execStart).Seconds())
	}
	if err != nil || !result.Success {
		reason := "execution failed"
		if err != nil {
			reason = "execution failed: " + err.Error()
		}
		p.emit(order.ID, model.StatusFailed, notify.Extra{Reason: reason})
		if p.prom != nil {
			p.prom.OrdersFailed.Inc()
		}
		if err == nil {
			err = fmt.Errorf("order %s: settlement reported failure", order.ID)
		}
		return err
	}

	p.emit(order.ID, model.StatusConfirmed, notify.Extra{
		TxHash:        result.TxID,
		ExecutedPrice: result.ExecutedPrice,
	})
	if p.prom != nil {
		p.prom.OrdersConfirmed.Inc()
	}
	log.Printf("[pipeline] order %s confirmed, tx %s", order.ID, result.TxID)
	return nil
}

func (p *Processor) emit(orderID string, status model.Status, extra notify.Extra) {
	outcome := p.notifier.Notify(orderID, status, extra)
	if p.prom != nil {
		p.prom.Notifications.WithLabelValues(outcome.String()).Inc()
	}
}
