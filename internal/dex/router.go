package dex

import (
	"context"
	"errors"
	"fmt"
	"log"

	"swap-enginev1/internal/model"
)

// ErrNoLiquidity is returned when every venue quotes a zero price for the pair.
var ErrNoLiquidity = errors.New("no liquidity for pair on any venue")

// Router fans a quote request out to every registered venue and picks the
// best offer. Venue order is fixed at construction; it is the tie-break.
type Router struct {
	sources []QuoteSource
}

// NewRouter creates a router over the given quote sources.
// Registration order matters: on equal output the earlier source wins.
func NewRouter(sources ...QuoteSource) *Router {
	return &Router{sources: sources}
}

// Sources returns the registered quote sources in registration order.
func (r *Router) Sources() []QuoteSource { return r.sources }

// FindBestRoute queries all venues concurrently, waits for every response,
// and returns the quote with the strictly greatest output amount. Ties go
// to the first-registered venue. Any venue error aborts the whole attempt:
// silently excluding a failed venue would make the selection depend on
// which venues happened to be up.
func (r *Router) FindBestRoute(ctx context.Context, inputToken, outputToken string, amount float64) (model.Quote, error) {
	if len(r.sources) == 0 {
		return model.Quote{}, errors.New("no quote sources registered")
	}

	type result struct {
		quote model.Quote
		err   error
	}
	results := make([]result, len(r.sources))

	done := make(chan int, len(r.sources))
	for i, src := range r.sources {
		go func(i int, src QuoteSource) {
			q, err := src.GetQuote(ctx, inputToken, outputToken, amount)
			results[i] = result{quote: q, err: err}
			done <- i
		}(i, src)
	}
	for range r.sources {
		<-done
	}

	// Compare in registration order so selection is deterministic.
	best := -1
	for i, res := range results {
		if res.err != nil {
			return model.Quote{}, fmt.Errorf("quote from %s: %w", r.sources[i].Name(), res.err)
		}
		if res.quote.Zero() {
			continue
		}
		if best == -1 || res.quote.AmountOut > results[best].quote.AmountOut {
			best = i
		}
	}
	if best == -1 {
		return model.Quote{}, ErrNoLiquidity
	}

	for i, res := range results {
		log.Printf("[router] %s: out=%.6f price=%.6f", r.sources[i].Name(), res.quote.AmountOut, res.quote.Price)
	}
	return results[best].quote, nil
}
