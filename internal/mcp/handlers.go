package mcp

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"invsim/internal/catalog"
	"invsim/internal/demand"
	"invsim/internal/pipeline"
	"invsim/internal/report"
	"invsim/internal/simulation"
)

// maxOverview bounds the product list returned by decompose_catalog.
const maxOverview = 25

const defaultForecastWeeks = 12

// ProductOverview is the compact demand model of one product.
type ProductOverview struct {
	Key          string  `json:"key"`
	Level        float64 `json:"level"`
	Trend        float64 `json:"trend"`
	CleanedStdev float64 `json:"cleaned_stdev"`
	Simulatable  bool    `json:"simulatable"`
}

// DecomposeData is the payload of decompose_catalog.
type DecomposeData struct {
	*pipeline.DecomposeResult
	TopProducts []ProductOverview `json:"top_products"`
}

func (s *Server) handleDecomposeCatalog(ctx context.Context, in DecomposeInput) (ResponseEnvelope, error) {
	ic := s.cfg.Ingest
	if in.DatasetPath != "" {
		ic.DatasetPath = in.DatasetPath
	}
	if in.RelevancePath != "" {
		ic.RelevancePath = in.RelevancePath
	}
	if in.StorageCostPath != "" {
		ic.StorageCostPath = in.StorageCostPath
	}
	override(&ic.BaseYear, in.BaseYear)
	override(&ic.Years, in.Years)
	cl := s.cfg.Cleaning
	override(&cl.Z, in.Z)
	if cl.Z <= 0 {
		return ResponseEnvelope{}, fmt.Errorf("z must be positive, got %g", cl.Z)
	}

	res, err := pipeline.Decompose(ctx, ic, cl, s.store, in.ExportPath)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	overview := make([]ProductOverview, 0, res.Catalog.Len())
	for _, p := range res.Catalog.Products() {
		d := p.Decomposition
		overview = append(overview, ProductOverview{
			Key:          p.Key.String(),
			Level:        d.Level,
			Trend:        d.Trend,
			CleanedStdev: d.CleanedStdev,
			Simulatable:  p.Simulatable(),
		})
	}
	slices.SortStableFunc(overview, func(a, b ProductOverview) int {
		return cmp.Compare(b.Level, a.Level)
	})

	var insights, warnings []string
	if len(overview) > maxOverview {
		insights = append(insights, fmt.Sprintf("Showing the %d products with the highest demand level out of %d.", maxOverview, len(overview)))
		overview = overview[:maxOverview]
	}
	insights = append(insights, fmt.Sprintf("Cleaning repaired %d sales, %d volume and %d price entries.",
		res.Cleaning.Sales, res.Cleaning.Volume, res.Cleaning.Price))
	if res.Rows.Skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d rows were skipped; see rows.reasons.", res.Rows.Skipped, res.Rows.Rows))
	}
	if n := len(res.MissingRelevance); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d products have no relevance score and will be excluded from simulation.", n))
	}
	if n := len(res.MissingStorageCost); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d products have no storage cost and will be excluded from simulation.", n))
	}

	return WrapResponse(DecomposeData{DecomposeResult: res, TopProducts: overview}, "", insights, warnings), nil
}

func (s *Server) handleForecastDemand(_ context.Context, in ForecastInput) (ResponseEnvelope, error) {
	weeks := defaultForecastWeeks
	override(&weeks, in.Weeks)
	key := catalog.Key{Chunk: in.Chunk, Category: in.Category, SizeGroup: in.SizeGroup}

	f, err := pipeline.Forecast(s.store, s.datasetOrDefault(in.Dataset), key, weeks)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var insights []string
	if f.Trend < 0 {
		insights = append(insights, fmt.Sprintf("Demand is declining by %.2f units per week before seasonality.", -f.Trend))
	}
	return WrapResponse(f, f.Chart, insights, nil), nil
}

// SimulationData is the payload of simulate_policy. Per-run rows are left to the exported table.
type SimulationData struct {
	Dataset   string             `json:"dataset"`
	Horizon   simulation.Horizon `json:"horizon"`
	Model     string             `json:"demand_model"`
	Seed      uint64             `json:"seed"`
	Summary   simulation.Summary `json:"summary"`
	Excluded  []string           `json:"excluded,omitempty"`
	Published pipeline.Published `json:"published"`
}

func (s *Server) handleSimulatePolicy(ctx context.Context, in SimulateInput) (ResponseEnvelope, error) {
	sc := s.cfg.Simulation
	if in.TargetsPath != "" {
		sc.TargetsPath = in.TargetsPath
	}
	override(&sc.StartWeek, in.StartWeek)
	override(&sc.EndWeek, in.EndWeek)
	override(&sc.Runs, in.Runs)
	if in.DemandModel != "" {
		model, err := demand.ParseModel(in.DemandModel)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		sc.DemandModel = model
	}
	override(&sc.Seed, in.Seed)
	override(&sc.HoldingMultiplier, in.HoldingMultiplier)
	override(&sc.DiscardPenalty, in.DiscardPenalty)
	override(&sc.ForecastMultiplier, in.ForecastMultiplier)
	override(&sc.ExportResults, in.Export)
	// A stdio server has no user in front of a browser.
	sc.OpenReport = false

	dataset := s.datasetOrDefault(in.Dataset)
	r, err := pipeline.Simulate(ctx, s.store, dataset, sc)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	published, err := pipeline.Publish(r, sc, s.resultsDir(), dataset)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	data := SimulationData{
		Dataset:   dataset,
		Horizon:   r.Horizon,
		Model:     r.Model,
		Seed:      r.Seed,
		Summary:   r.Summary,
		Published: published,
	}
	var warnings []string
	for _, key := range r.Excluded {
		data.Excluded = append(data.Excluded, key.String())
	}
	if len(data.Excluded) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d products were excluded for missing relevance score or storage cost.", len(data.Excluded)))
	}

	sum := r.Summary
	insights := []string{
		fmt.Sprintf("Mean revenue %.2f of a theoretical %.2f (P50 %.2f, P95 %.2f).",
			sum.Revenue, sum.TheoreticalRevenue, sum.RevenuePercentiles.P50, sum.RevenuePercentiles.P95),
		fmt.Sprintf("Mean service level %s over %d runs.", sum.ServiceLevel, sum.Runs),
	}
	if sum.Discarded > 0 {
		insights = append(insights, fmt.Sprintf("On average %.1f units were discarded when targets dropped.", sum.Discarded))
	}

	return WrapResponse(data, report.ServiceLevelChart(sum), insights, warnings), nil
}
