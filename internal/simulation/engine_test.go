package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"invsim/internal/catalog"
	"invsim/internal/demand"
	"invsim/internal/stats"
)

const historyWeeks = 104

// product builds a prepared product whose demand is level*x with x ~ N(1, sd).
func product(chunk, size string, level, sd float64) *catalog.ProductSeries {
	si := make([]float64, stats.NSeasons)
	for i := range si {
		si[i] = 1
	}
	return &catalog.ProductSeries{
		Key:            catalog.Key{Chunk: chunk, Category: "cat", SizeGroup: size},
		Relevance:      0.5,
		HasRelevance:   true,
		StorageCost:    0.1,
		HasStorageCost: true,
		Sales:          make([]int, historyWeeks),
		Volume:         make([]float64, historyWeeks),
		Price:          make([]float64, historyWeeks),
		Present:        make([]bool, historyWeeks),
		Decomposition: &stats.Decomposition{
			NWeeks:        historyWeeks,
			SeasonalIndex: si,
			Level:         level,
			CleanedMean:   1,
			CleanedStdev:  sd,
		},
		MeanVolume: 0.2,
		MeanPrice:  10,
	}
}

func restore(t *testing.T, products ...*catalog.ProductSeries) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Restore(historyWeeks, products)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return c
}

func constantTargets(t *testing.T, c *catalog.Catalog, weeks, level int) *TargetTable {
	t.Helper()
	tt := NewTargetTable(weeks, c.Len())
	for k := 0; k < weeks; k++ {
		for id := 0; id < c.Len(); id++ {
			if err := tt.Set(k, catalog.ProductID(id), level); err != nil {
				t.Fatal(err)
			}
		}
	}
	return tt
}

func runEngine(t *testing.T, c *catalog.Catalog, targets *TargetTable, h Horizon, opts Options) *Report {
	t.Helper()
	e, err := NewEngine(c, targets, h, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func TestEngine_ZeroTargets(t *testing.T) {
	c := restore(t, product("beds", "M", 5, 0))
	h := Horizon{Start: 0, End: 10}
	report := runEngine(t, c, NewTargetTable(10, c.Len()), h, Options{Runs: 3, Seed: 1})

	for _, r := range report.Runs {
		if r.Ordered != 0 || r.Sold != 0 || r.Ending != 0 {
			t.Errorf("run %d: ordered=%d sold=%d ending=%d", r.Run, r.Ordered, r.Sold, r.Ending)
		}
		for _, w := range r.Weeks {
			if w.Demanded == 0 {
				continue
			}
			if !w.ServiceLevel.Valid || w.ServiceLevel.Value != 0 {
				t.Errorf("run %d week %d: service level %v, want 0", r.Run, w.Week, w.ServiceLevel)
			}
			if w.Capacity != 0 {
				t.Errorf("run %d week %d: capacity %v, want 0", r.Run, w.Week, w.Capacity)
			}
		}
		if r.Cells.Empty != h.Len() {
			t.Errorf("run %d: %d empty cells, want %d", r.Run, r.Cells.Empty, h.Len())
		}
	}
}

func TestEngine_ConstantDemandMatchesTarget(t *testing.T) {
	c := restore(t, product("beds", "M", 5, 0), product("beds", "L", 5, 0))
	h := Horizon{Start: 0, End: 12}
	report := runEngine(t, c, constantTargets(t, c, 12, 5), h, Options{Runs: 2, Seed: 9})

	for _, r := range report.Runs {
		if r.Discarded != 0 {
			t.Errorf("run %d: discarded %d", r.Run, r.Discarded)
		}
		for i, w := range r.Weeks {
			if !w.ServiceLevel.Valid || w.ServiceLevel.Value != 1 {
				t.Errorf("run %d week %d: service level %v, want 1", r.Run, w.Week, w.ServiceLevel)
			}
			// After the first week every order only replaces what sold the week before.
			if i > 0 && w.Ordered != r.Weeks[i-1].Sold {
				t.Errorf("run %d week %d: ordered %d, previous week sold %d", r.Run, w.Week, w.Ordered, r.Weeks[i-1].Sold)
			}
			if w.Orders != 1 {
				t.Errorf("run %d week %d: %d order events, want 1 for the single chunk", r.Run, w.Week, w.Orders)
			}
		}
		if r.Ordered != r.Sold || r.Ending != 0 {
			t.Errorf("run %d: ordered=%d sold=%d ending=%d", r.Run, r.Ordered, r.Sold, r.Ending)
		}
		if r.HoldingCost != 0 {
			t.Errorf("run %d: holding cost %v, want 0", r.Run, r.HoldingCost)
		}
		if r.Cells.Sold != 2*h.Len() {
			t.Errorf("run %d: cells %+v", r.Run, r.Cells)
		}
	}
	if !report.Summary.ServiceLevel.Valid || report.Summary.ServiceLevel.Value != 1 {
		t.Errorf("summary service level %v", report.Summary.ServiceLevel)
	}
}

func TestEngine_Conservation(t *testing.T) {
	c := restore(t,
		product("beds", "M", 6, 0.4),
		product("beds", "L", 3, 0.8),
		product("sofas", "M", 9, 0.3),
	)
	h := Horizon{Start: 2, End: 30}

	varying := NewTargetTable(30, c.Len())
	for k := 0; k < 30; k++ {
		for id := 0; id < c.Len(); id++ {
			_ = varying.Set(k, catalog.ProductID(id), (k*7+id*3)%13)
		}
	}

	tests := []struct {
		name    string
		targets *TargetTable
	}{
		{"Constant", constantTargets(t, c, 30, 8)},
		{"Varying", varying},
	}

	for _, tt := range tests {
		for _, model := range []demand.Model{demand.Normal, demand.Poisson} {
			t.Run(tt.name+"/"+model.String(), func(t *testing.T) {
				report := runEngine(t, c, tt.targets, h, Options{Runs: 5, DemandModel: model, Seed: 77})
				for _, r := range report.Runs {
					ending := 0
					for _, p := range r.Products {
						if p.Ending != p.Ordered-p.Sold-p.Discarded {
							t.Errorf("run %d %s: ending %d != %d - %d - %d", r.Run, p.Key, p.Ending, p.Ordered, p.Sold, p.Discarded)
						}
						if p.Discarded == 0 && p.Ordered < p.Sold {
							t.Errorf("run %d %s: ordered %d < sold %d", r.Run, p.Key, p.Ordered, p.Sold)
						}
						if p.Sold > p.Demanded {
							t.Errorf("run %d %s: sold %d > demanded %d", r.Run, p.Key, p.Sold, p.Demanded)
						}
						ending += p.Ending
					}
					if ending != r.Ending {
						t.Errorf("run %d: ending %d, products sum to %d", r.Run, r.Ending, ending)
					}
					if tt.name == "Constant" && r.Discarded != 0 {
						t.Errorf("run %d: discarded %d under a constant target", r.Run, r.Discarded)
					}
					if got := r.Cells.Total(); got != h.Len()*c.Len() {
						t.Errorf("run %d: %d cells, want %d", r.Run, got, h.Len()*c.Len())
					}
				}
			})
		}
	}
}

func TestEngine_ServiceLevelBounds(t *testing.T) {
	c := restore(t, product("beds", "M", 4, 1.2), product("rugs", "S", 0.3, 2))
	targets := NewTargetTable(20, c.Len())
	for k := 0; k < 20; k++ {
		_ = targets.Set(k, 0, k%5)
		_ = targets.Set(k, 1, k%2)
	}

	for _, model := range []demand.Model{demand.Normal, demand.Poisson} {
		t.Run(model.String(), func(t *testing.T) {
			report := runEngine(t, c, targets, Horizon{Start: 0, End: 20}, Options{Runs: 20, DemandModel: model, Seed: 3})
			check := func(where string, s ServiceLevel) {
				if s.Valid && (s.Value < 0 || s.Value > 1) {
					t.Errorf("%s: service level %v out of [0, 1]", where, s.Value)
				}
			}
			for _, r := range report.Runs {
				check("run", r.ServiceLevel)
				for _, w := range r.Weeks {
					check("week", w.ServiceLevel)
					if w.Demanded == 0 && w.ServiceLevel.Valid {
						t.Errorf("week %d: defined service level without demand", w.Week)
					}
				}
			}
			check("summary", report.Summary.ServiceLevel)
			for _, w := range report.Summary.Weeks {
				check("summary week", w.ServiceLevel)
			}
		})
	}
}

func TestEngine_NoDemandIsUndefined(t *testing.T) {
	c := restore(t, product("beds", "M", 0, 0))
	report := runEngine(t, c, constantTargets(t, c, 4, 3), Horizon{Start: 0, End: 4}, Options{Runs: 1})

	r := report.Runs[0]
	if r.ServiceLevel.Valid {
		t.Errorf("service level %v, want undefined", r.ServiceLevel)
	}
	b, err := json.Marshal(r.Weeks[0])
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if v, ok := decoded["service_level"]; !ok || v != nil {
		t.Errorf("service_level = %v, want null", v)
	}
	if report.Summary.ServiceLevel.Valid {
		t.Error("summary service level should be undefined")
	}
}

func TestEngine_HoldingAndDiscards(t *testing.T) {
	c := restore(t, product("beds", "M", 5, 0))
	targets := NewTargetTable(3, 1)
	_ = targets.Set(0, 0, 10)
	_ = targets.Set(1, 0, 2)
	_ = targets.Set(2, 0, 2)

	report := runEngine(t, c, targets, Horizon{Start: 0, End: 3}, Options{Runs: 1, DiscardPenalty: 1.5})
	r := report.Runs[0]

	// Week 0: 10 stocked, 5 sold, 5 carried. Week 1: cut to 2, 2 sold. Week 2: 2 ordered, 2 sold.
	if r.Ordered != 12 || r.Discarded != 3 || r.Sold != 9 || r.Ending != 0 {
		t.Errorf("ordered=%d discarded=%d sold=%d ending=%d", r.Ordered, r.Discarded, r.Sold, r.Ending)
	}
	wantHolding := 5 * 0.1 * DefaultHoldingMultiplier
	if diff := r.HoldingCost - wantHolding; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("holding cost = %v, want %v", r.HoldingCost, wantHolding)
	}
	if r.DiscardCost != 4.5 {
		t.Errorf("discard cost = %v, want 4.5", r.DiscardCost)
	}
	if r.Revenue != 90 || r.TheoreticalRevenue != 150 {
		t.Errorf("revenue = %v / %v, want 90 / 150", r.Revenue, r.TheoreticalRevenue)
	}
	if r.Weeks[0].Capacity != 2 {
		t.Errorf("week 0 capacity = %v, want 2", r.Weeks[0].Capacity)
	}
	if r.Cells.CarriedForward != 1 || r.Cells.Sold != 2 {
		t.Errorf("cells = %+v", r.Cells)
	}
}

func TestEngine_OrdersCountedPerGroup(t *testing.T) {
	c := restore(t,
		product("beds", "M", 1, 0),
		product("beds", "L", 1, 0),
		product("sofas", "M", 1, 0),
	)
	report := runEngine(t, c, constantTargets(t, c, 1, 4), Horizon{Start: 0, End: 1}, Options{Runs: 1})
	if got := report.Runs[0].Orders; got != 2 {
		t.Errorf("orders = %d, want 2", got)
	}
}

func TestEngine_ExcludesProductsMissingLookups(t *testing.T) {
	missing := product("lamps", "S", 5, 0)
	missing.HasStorageCost = false
	c := restore(t, product("beds", "M", 5, 0), missing)

	e, err := NewEngine(c, constantTargets(t, c, 5, 5), Horizon{Start: 0, End: 5}, Options{Runs: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Excluded(); len(got) != 1 || got[0] != missing.Key {
		t.Fatalf("Excluded() = %v", got)
	}

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r := report.Runs[0]
	if len(r.Products) != 1 || r.Products[0].Key.Chunk != "beds" {
		t.Errorf("products = %+v", r.Products)
	}
	if r.Sold != 25 {
		t.Errorf("sold = %d, want only the beds' 25", r.Sold)
	}
}

func TestNewEngine_Preconditions(t *testing.T) {
	prepared := restore(t, product("beds", "M", 5, 0))
	raw := catalog.New(historyWeeks)
	_ = raw.Observe(catalog.Observation{Key: catalog.Key{Chunk: "beds"}})
	targets := NewTargetTable(10, 1)
	ok := Options{Runs: 1}

	tests := []struct {
		name    string
		catalog *catalog.Catalog
		targets *TargetTable
		horizon Horizon
		opts    Options
	}{
		{"NilCatalog", nil, targets, Horizon{0, 5}, ok},
		{"Unprepared", raw, targets, Horizon{0, 5}, ok},
		{"NegativeStart", prepared, targets, Horizon{-1, 5}, ok},
		{"EmptyHorizon", prepared, targets, Horizon{5, 5}, ok},
		{"NoRuns", prepared, targets, Horizon{0, 5}, Options{}},
		{"NoTargets", prepared, nil, Horizon{0, 5}, ok},
		{"ShapeMismatch", prepared, NewTargetTable(10, 2), Horizon{0, 5}, ok},
		{"ShortTable", prepared, targets, Horizon{0, 11}, ok},
		{"NegativeHolding", prepared, targets, Horizon{0, 5}, Options{Runs: 1, HoldingMultiplier: -1}},
		{"NegativePenalty", prepared, targets, Horizon{0, 5}, Options{Runs: 1, DiscardPenalty: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.catalog, tt.targets, tt.horizon, tt.opts)
			if !errors.Is(err, ErrPrecondition) {
				t.Errorf("NewEngine() error = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestEngine_WorkerCountDoesNotChangeResults(t *testing.T) {
	c := restore(t, product("beds", "M", 6, 0.5), product("sofas", "L", 2, 0.9))
	targets := constantTargets(t, c, 26, 6)
	h := Horizon{Start: 0, End: 26}

	serial := runEngine(t, c, targets, h, Options{Runs: 16, Seed: 2024, Workers: 1})
	parallel := runEngine(t, c, targets, h, Options{Runs: 16, Seed: 2024, Workers: 8})

	if !reflect.DeepEqual(serial.Runs, parallel.Runs) {
		t.Error("runs differ between worker counts")
	}
	if !reflect.DeepEqual(serial.Summary, parallel.Summary) {
		t.Error("summary differs between worker counts")
	}

	reseeded := runEngine(t, c, targets, h, Options{Runs: 16, Seed: 2025, Workers: 8})
	if reflect.DeepEqual(serial.Runs, reseeded.Runs) {
		t.Error("a different seed produced identical runs")
	}
}

func TestEngine_SetSeed(t *testing.T) {
	c := restore(t, product("beds", "M", 6, 0.5))
	e, err := NewEngine(c, constantTargets(t, c, 8, 6), Horizon{Start: 0, End: 8}, Options{Runs: 1, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	e.SetSeed(99)
	a := e.RunOnce(0)
	e.SetSeed(99)
	b := e.RunOnce(0)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different runs")
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	c := restore(t, product("beds", "M", 6, 0.5))
	e, err := NewEngine(c, constantTargets(t, c, 8, 6), Horizon{Start: 0, End: 8}, Options{Runs: 4})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) || report != nil {
		t.Errorf("Run() = %v, %v; want nil, context.Canceled", report, err)
	}
}

func TestTargetTable_Set(t *testing.T) {
	tt := NewTargetTable(2, 2)
	if err := tt.Set(1, 1, 4); err != nil {
		t.Fatal(err)
	}
	if tt.Level(1, 1) != 4 || tt.Level(0, 0) != 0 {
		t.Error("unexpected levels")
	}
	for _, bad := range []struct{ week, id, level int }{{2, 0, 1}, {0, 2, 1}, {0, 0, -1}, {-1, 0, 1}} {
		if err := tt.Set(bad.week, catalog.ProductID(bad.id), bad.level); !errors.Is(err, ErrPrecondition) {
			t.Errorf("Set(%v) = %v, want ErrPrecondition", bad, err)
		}
	}
}

func TestForecastTargets(t *testing.T) {
	c := restore(t, product("beds", "M", 5, 0))
	tt := ForecastTargets(c, 4, 1.2)
	for k := 0; k < 4; k++ {
		if got := tt.Level(k, 0); got != 6 {
			t.Errorf("week %d: level %d, want 6", k, got)
		}
	}
	if got := ForecastTargets(c, 1, 0).Level(0, 0); got != 5 {
		t.Errorf("zero multiplier level = %d, want 5", got)
	}
}

func TestSummarize(t *testing.T) {
	runs := []RunResult{
		{Revenue: 10, ServiceLevel: ServiceLevel{Value: 0.5, Valid: true}, Weeks: []WeekResult{{ServiceLevel: ServiceLevel{}}}},
		{Revenue: 30, ServiceLevel: ServiceLevel{}, Weeks: []WeekResult{{ServiceLevel: ServiceLevel{Value: 1, Valid: true}}}},
	}
	s := summarize(runs, []int{7})

	if s.Revenue != 20 {
		t.Errorf("Revenue = %v, want 20", s.Revenue)
	}
	if s.ServiceLevel != (ServiceLevel{Value: 0.5, Valid: true}) {
		t.Errorf("ServiceLevel = %v, want 0.5 from the one defined run", s.ServiceLevel)
	}
	if s.Weeks[0].Week != 7 || s.Weeks[0].ServiceLevel.Value != 1 {
		t.Errorf("Weeks = %+v", s.Weeks)
	}
	if s.RevenuePercentiles.P50 != 30 || s.RevenuePercentiles.P95 != 30 {
		t.Errorf("RevenuePercentiles = %+v", s.RevenuePercentiles)
	}
}
