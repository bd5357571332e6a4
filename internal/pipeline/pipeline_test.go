package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"invsim/internal/catalog"
	"invsim/internal/config"
	"invsim/internal/demand"
	"invsim/internal/simulation"
	"invsim/internal/store"
)

type fixture struct {
	dir    string
	ingest config.IngestConfig
	store  *store.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	var sb strings.Builder
	sb.WriteString("year,week,quantitySold,category,shop,chunkName,sizeGroup,averageVolumeM3,averagePrice\n")
	for _, year := range []int{2018, 2019} {
		for week := 1; week <= 52; week++ {
			fmt.Fprintf(&sb, "%d,%d,10,beds,north,A,M,0.5,40\n", year, week)
			fmt.Fprintf(&sb, "%d,%d,4,beds,north,B,M,0.5,25\n", year, week)
		}
	}

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	return fixture{
		dir: dir,
		ingest: config.IngestConfig{
			DatasetPath:     write("sales.csv", sb.String()),
			RelevancePath:   write("relevance.csv", "chunkName,relevanceScore\nA,0.8\n"),
			StorageCostPath: write("storage.csv", "sizeGroup,unitStorageCost\nM,0.1\n"),
			BaseYear:        2018,
			Years:           2,
		},
		store: store.New(filepath.Join(dir, "cache")),
	}
}

func TestDecompose(t *testing.T) {
	f := newFixture(t)

	res, err := Decompose(context.Background(), f.ingest, config.CleaningConfig{Z: 3.5}, f.store, filepath.Join(f.dir, "decomposition.xlsx"))
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	if res.Dataset != "sales" {
		t.Errorf("Dataset = %q, want sales", res.Dataset)
	}
	if res.Rows.OK != 208 || res.Rows.Skipped != 0 {
		t.Errorf("Rows = %+v, want 208 ok", res.Rows)
	}
	if res.Products != 2 {
		t.Errorf("Products = %d, want 2", res.Products)
	}
	if len(res.MissingRelevance) != 1 || res.MissingRelevance[0] != "B/beds/M" {
		t.Errorf("MissingRelevance = %v, want [B/beds/M]", res.MissingRelevance)
	}
	if math.Abs(res.MedianLevel-7) > 1e-6 {
		t.Errorf("MedianLevel = %v, want 7", res.MedianLevel)
	}
	if len(res.MissingStorageCost) != 0 {
		t.Errorf("MissingStorageCost = %v, want none", res.MissingStorageCost)
	}
	for _, path := range []string{res.CachePath, res.ExportPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	// A fresh store must find the persisted catalog.
	c, err := store.New(filepath.Join(f.dir, "cache")).Get("sales")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !c.Prepared() || c.Len() != 2 {
		t.Errorf("restored catalog prepared=%v len=%d", c.Prepared(), c.Len())
	}
}

func TestDecompose_NoDataset(t *testing.T) {
	f := newFixture(t)
	f.ingest.DatasetPath = ""
	if _, err := Decompose(context.Background(), f.ingest, config.CleaningConfig{Z: 3.5}, f.store, ""); err == nil {
		t.Error("expected an error without a dataset path")
	}
}

func TestForecast(t *testing.T) {
	f := newFixture(t)
	if _, err := Decompose(context.Background(), f.ingest, config.CleaningConfig{Z: 3.5}, f.store, ""); err != nil {
		t.Fatal(err)
	}

	fc, err := Forecast(f.store, "sales", catalog.Key{Chunk: "A", Category: "beds", SizeGroup: "M"}, 4)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for k, v := range fc.Forecast {
		if v != 10 {
			t.Errorf("Forecast[%d] = %d, want 10", k, v)
		}
	}
	if len(fc.SeasonalIndex) != 52 {
		t.Errorf("len(SeasonalIndex) = %d, want 52", len(fc.SeasonalIndex))
	}
	if !strings.HasPrefix(fc.Chart, "```mermaid") {
		t.Errorf("Chart is not a mermaid block: %q", fc.Chart)
	}

	_, err = Forecast(f.store, "sales", catalog.Key{Chunk: "Z", Category: "beds", SizeGroup: "M"}, 4)
	if !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("unknown product: err = %v, want ErrUnknownProduct", err)
	}
	if _, err := Forecast(f.store, "sales", catalog.Key{Chunk: "A", Category: "beds", SizeGroup: "M"}, 0); err == nil {
		t.Error("expected an error for an empty horizon")
	}
	if _, err := Forecast(f.store, "missing", catalog.Key{Chunk: "A", Category: "beds", SizeGroup: "M"}, 4); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown dataset: err = %v, want store.ErrNotFound", err)
	}
}

func simulationConfig() config.SimulationConfig {
	return config.SimulationConfig{
		StartWeek:          0,
		EndWeek:            8,
		Runs:               5,
		DemandModel:        demand.Poisson,
		Seed:               1234,
		ForecastMultiplier: 1.5,
		Workers:            2,
	}
}

func TestSimulate_ForecastPolicy(t *testing.T) {
	f := newFixture(t)
	if _, err := Decompose(context.Background(), f.ingest, config.CleaningConfig{Z: 3.5}, f.store, ""); err != nil {
		t.Fatal(err)
	}

	r, err := Simulate(context.Background(), f.store, "sales", simulationConfig())
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if r.Summary.Runs != 5 || len(r.Runs) != 5 {
		t.Errorf("runs = %d/%d, want 5", r.Summary.Runs, len(r.Runs))
	}
	if len(r.Excluded) != 1 || r.Excluded[0].Chunk != "B" {
		t.Errorf("Excluded = %v, want product B", r.Excluded)
	}
	sl := r.Summary.ServiceLevel
	if !sl.Valid || sl.Value < 0 || sl.Value > 1 {
		t.Errorf("ServiceLevel = %v, want a level in [0, 1]", sl)
	}
	if len(r.Summary.Weeks) != 8 {
		t.Errorf("len(Weeks) = %d, want 8", len(r.Summary.Weeks))
	}
}

func TestSimulate_TargetFile(t *testing.T) {
	f := newFixture(t)
	if _, err := Decompose(context.Background(), f.ingest, config.CleaningConfig{Z: 3.5}, f.store, ""); err != nil {
		t.Fatal(err)
	}

	sc := simulationConfig()
	sc.TargetsPath = filepath.Join(f.dir, "targets.csv")
	if err := os.WriteFile(sc.TargetsPath, []byte("week,chunkName,category,sizeGroup,target\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// An empty target file stocks nothing, so nothing sells.
	r, err := Simulate(context.Background(), f.store, "sales", sc)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if r.Summary.Sold != 0 || r.Summary.Ordered != 0 {
		t.Errorf("sold=%v ordered=%v, want 0", r.Summary.Sold, r.Summary.Ordered)
	}
}

func TestSimulate_Preconditions(t *testing.T) {
	f := newFixture(t)
	if _, err := Decompose(context.Background(), f.ingest, config.CleaningConfig{Z: 3.5}, f.store, ""); err != nil {
		t.Fatal(err)
	}

	sc := simulationConfig()
	sc.EndWeek = 0
	if _, err := Simulate(context.Background(), f.store, "sales", sc); !errors.Is(err, simulation.ErrPrecondition) {
		t.Errorf("empty horizon: err = %v, want ErrPrecondition", err)
	}

	sc = simulationConfig()
	sc.Runs = 0
	if _, err := Simulate(context.Background(), f.store, "sales", sc); !errors.Is(err, simulation.ErrPrecondition) {
		t.Errorf("zero runs: err = %v, want ErrPrecondition", err)
	}
}

func TestPublish(t *testing.T) {
	f := newFixture(t)
	if _, err := Decompose(context.Background(), f.ingest, config.CleaningConfig{Z: 3.5}, f.store, ""); err != nil {
		t.Fatal(err)
	}
	sc := simulationConfig()
	r, err := Simulate(context.Background(), f.store, "sales", sc)
	if err != nil {
		t.Fatal(err)
	}

	out, err := Publish(r, sc, filepath.Join(f.dir, "results"), "sales")
	if err != nil {
		t.Fatalf("Publish without export: %v", err)
	}
	if out != (Published{}) {
		t.Errorf("Publish wrote %+v with exports disabled", out)
	}

	sc.ExportResults = true
	out, err = Publish(r, sc, filepath.Join(f.dir, "results"), "sales")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := filepath.Join(f.dir, "results", "sales.xlsx")
	if out.Results != want {
		t.Errorf("Results = %q, want %q", out.Results, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected %s to exist: %v", want, err)
	}
}
