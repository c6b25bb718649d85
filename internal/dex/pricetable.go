package dex

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// PriceTable maps ordered pair keys ("SOL-USDC") to base prices.
// Unknown pairs resolve to zero, which venues surface as a no-liquidity quote.
type PriceTable map[string]float64

// DefaultPriceTable mirrors the built-in simulation pairs.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"SOL-USDC": 150.00,
		"USDC-SOL": 0.0066,
	}
}

// BasePrice returns the base price for a pair, zero if unlisted.
func (t PriceTable) BasePrice(pair string) float64 {
	return t[pair]
}

// venueFile is the YAML shape of an optional venue override file:
//
//	pairs:
//	  SOL-USDC: 150.0
//	  USDC-SOL: 0.0066
//	venues:
//	  - name: RAYDIUM
//	    fee: 0.003
//	    variance_min: 0.98
//	    variance_max: 1.02
type venueFile struct {
	Pairs  map[string]float64 `yaml:"pairs"`
	Venues []VenueSpec        `yaml:"venues"`
}

// VenueSpec configures a single simulated liquidity venue. LatencyMs
// overrides the global quote latency for this venue when non-zero.
type VenueSpec struct {
	Name        string  `yaml:"name"`
	Fee         float64 `yaml:"fee"`
	VarianceMin float64 `yaml:"variance_min"`
	VarianceMax float64 `yaml:"variance_max"`
	LatencyMs   int     `yaml:"latency_ms,omitempty"`
}

// DefaultVenueSpecs returns the built-in venue set: two pools with
// different spread and fee characteristics.
func DefaultVenueSpecs() []VenueSpec {
	return []VenueSpec{
		{Name: "RAYDIUM", Fee: 0.003, VarianceMin: 0.98, VarianceMax: 1.02},
		{Name: "METEORA", Fee: 0.002, VarianceMin: 0.97, VarianceMax: 1.02},
	}
}

// LoadVenueFile parses a YAML venue file. Missing sections fall back to
// the built-in defaults so a file may override just the pair table.
func LoadVenueFile(path string) (PriceTable, []VenueSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("venue file read: %w", err)
	}

	var vf venueFile
	if err := yaml.Unmarshal(raw, &vf); err != nil {
		return nil, nil, fmt.Errorf("venue file parse: %w", err)
	}

	table := DefaultPriceTable()
	if len(vf.Pairs) > 0 {
		table = PriceTable(vf.Pairs)
	}
	venues := DefaultVenueSpecs()
	if len(vf.Venues) > 0 {
		venues = vf.Venues
	}

	for _, v := range venues {
		if v.Name == "" || v.VarianceMax < v.VarianceMin {
			return nil, nil, fmt.Errorf("venue file: invalid venue entry %+v", v)
		}
	}

	log.Printf("[dex] loaded venue file %s (%d pairs, %d venues)", path, len(table), len(venues))
	return table, venues, nil
}
