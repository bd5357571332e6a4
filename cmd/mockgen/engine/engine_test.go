package engine

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"invsim/internal/catalog"
	"invsim/internal/ingest"
)

func TestGenerate_Deterministic(t *testing.T) {
	cfg := GeneratorConfig{Scenario: "chaos", Distribution: "poisson", Chunks: 2, BaseYear: 2018, Years: 2, Seed: 42}
	a := Generate(cfg)
	b := Generate(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different datasets")
	}
	if got, want := len(a.Observations.Rows), 2*len(sizes)*104; got != want {
		t.Errorf("rows = %d, want %d", got, want)
	}
	// chaos leaves the last chunk without a relevance score
	if len(a.Relevance.Rows) != 1 {
		t.Errorf("relevance rows = %d, want 1", len(a.Relevance.Rows))
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, format := range []string{"csv", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			cfg := GeneratorConfig{Scenario: "mild", Distribution: "normal", Chunks: 1, BaseYear: 2018, Years: 2, Seed: 7}

			paths, err := Save(dir, "mock", format, Generate(cfg))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if len(paths) != 3 || paths[0] != filepath.Join(dir, "mock."+format) {
				t.Fatalf("paths = %v", paths)
			}

			c, sum, err := ingest.LoadCatalog(paths[0], ingest.Options{BaseYear: 2018, Years: 2})
			if err != nil {
				t.Fatalf("LoadCatalog: %v", err)
			}
			if sum.Skipped != 0 || c.Len() != len(sizes) {
				t.Errorf("skipped=%d products=%d, want 0/%d", sum.Skipped, c.Len(), len(sizes))
			}

			l, err := ingest.LoadLookups(paths[1], paths[2])
			if err != nil {
				t.Fatalf("LoadLookups: %v", err)
			}
			c.ApplyLookups(l)
			if err := c.Prepare(context.Background(), catalog.PrepareOptions{}); err != nil {
				t.Fatal(err)
			}
			for _, p := range c.Products() {
				if !p.Simulatable() {
					t.Errorf("product %s is missing a lookup", p.Key)
				}
			}
		})
	}
}

func TestSave_UnsupportedFormat(t *testing.T) {
	if _, err := Save(t.TempDir(), "mock", "json", Dataset{}); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}
