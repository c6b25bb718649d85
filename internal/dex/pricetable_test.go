package dex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadVenueFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.yaml")
	content := `
pairs:
  SOL-USDC: 140.0
venues:
  - name: ORCA
    fee: 0.0025
    variance_min: 0.99
    variance_max: 1.01
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, venues, err := LoadVenueFile(path)
	if err != nil {
		t.Fatalf("LoadVenueFile: %v", err)
	}
	if got := table.BasePrice("SOL-USDC"); got != 140.0 {
		t.Errorf("base price: got %v, want 140", got)
	}
	if len(venues) != 1 || venues[0].Name != "ORCA" {
		t.Errorf("venues: got %+v", venues)
	}
}

func TestLoadVenueFilePartialFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.yaml")
	if err := os.WriteFile(path, []byte("pairs:\n  ETH-USDC: 3000.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	table, venues, err := LoadVenueFile(path)
	if err != nil {
		t.Fatalf("LoadVenueFile: %v", err)
	}
	if got := table.BasePrice("ETH-USDC"); got != 3000.0 {
		t.Errorf("base price: got %v, want 3000", got)
	}
	if len(venues) != 2 {
		t.Errorf("expected default venues, got %+v", venues)
	}
}

func TestLoadVenueFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.yaml")
	bad := "venues:\n  - name: X\n    variance_min: 1.1\n    variance_max: 0.9\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadVenueFile(path); err == nil {
		t.Error("expected error for inverted variance interval")
	}

	if _, _, err := LoadVenueFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
