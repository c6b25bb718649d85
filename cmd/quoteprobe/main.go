// cmd/quoteprobe — one-shot venue quote probe.
//
// Queries every configured liquidity venue for a pair and amount, prints
// each quote and the route the engine would select. Useful for eyeballing
// the spread simulation without running the full service.
//
// Usage:
//
//	quoteprobe -in SOL -out USDC -amount 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"swap-enginev1/internal/dex"
)

func main() {
	in := flag.String("in", "SOL", "input token")
	out := flag.String("out", "USDC", "output token")
	amount := flag.Float64("amount", 10, "input amount")
	venueFile := flag.String("venues", "", "optional venue YAML file")
	latency := flag.Duration("latency", 200*time.Millisecond, "simulated quote latency")
	flag.Parse()

	table := dex.DefaultPriceTable()
	specs := dex.DefaultVenueSpecs()
	if *venueFile != "" {
		var err error
		table, specs, err = dex.LoadVenueFile(*venueFile)
		if err != nil {
			log.Fatalf("quoteprobe: %v", err)
		}
	}

	sources := make([]dex.QuoteSource, 0, len(specs))
	for _, spec := range specs {
		sources = append(sources, dex.NewVenue(spec, table, *latency))
	}
	router := dex.NewRouter(sources...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, src := range sources {
		q, err := src.GetQuote(ctx, *in, *out, *amount)
		if err != nil {
			log.Fatalf("quoteprobe: %s: %v", src.Name(), err)
		}
		fmt.Printf("%-10s price=%.6f fee=%.4f amountOut=%.6f\n", q.Venue, q.Price, q.Fee, q.AmountOut)
	}

	best, err := router.FindBestRoute(ctx, *in, *out, *amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no route: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nselected: %s (amountOut=%.6f)\n", best.Venue, best.AmountOut)
}
