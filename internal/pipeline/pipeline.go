package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"invsim/internal/catalog"
	"invsim/internal/config"
	"invsim/internal/demand"
	"invsim/internal/ingest"
	"invsim/internal/report"
	"invsim/internal/simulation"
	"invsim/internal/stats"
	"invsim/internal/store"
)

// ErrUnknownProduct is returned when a product key does not resolve in a catalog.
var ErrUnknownProduct = errors.New("unknown product")

// DecomposeResult describes one prepared dataset.
type DecomposeResult struct {
	Dataset            string                 `json:"dataset"`
	CachePath          string                 `json:"cache_path"`
	Rows               ingest.Summary         `json:"rows"`
	Products           int                    `json:"products"`
	Cleaning           catalog.CleaningReport `json:"cleaning"`
	MedianLevel        float64                `json:"median_level"`
	MissingRelevance   []string               `json:"missing_relevance,omitempty"`
	MissingStorageCost []string               `json:"missing_storage_cost,omitempty"`
	ExportPath         string                 `json:"export_path,omitempty"`

	Catalog *catalog.Catalog `json:"-"`
}

// Decompose loads the observation history and its lookups, cleans and decomposes every product,
// and persists the prepared catalog in st. A non-empty exportPath also writes the decomposition
// sheet there.
func Decompose(ctx context.Context, in config.IngestConfig, cl config.CleaningConfig, st *store.Store, exportPath string) (*DecomposeResult, error) {
	if in.DatasetPath == "" {
		return nil, fmt.Errorf("no dataset path configured (%s)", config.KeyDatasetPath)
	}

	c, rows, err := ingest.LoadCatalog(in.DatasetPath, ingest.Options{BaseYear: in.BaseYear, Years: in.Years})
	if err != nil {
		return nil, err
	}

	if in.RelevancePath != "" && in.StorageCostPath != "" {
		lookups, err := ingest.LoadLookups(in.RelevancePath, in.StorageCostPath)
		if err != nil {
			return nil, err
		}
		c.ApplyLookups(lookups)
	} else {
		log.Warn().Msg("Lookup tables not configured; every product will be excluded from simulation")
	}

	if err := c.Prepare(ctx, catalog.PrepareOptions{Z: cl.Z, Workers: cl.Workers}); err != nil {
		return nil, err
	}

	dataset := store.DatasetName(in.DatasetPath)
	st.Put(dataset, c)
	if err := st.Save(dataset); err != nil {
		return nil, err
	}

	res := &DecomposeResult{
		Dataset:   dataset,
		CachePath: st.Path(dataset),
		Rows:      rows,
		Products:  c.Len(),
		Catalog:   c,
	}
	levels := make([]float64, 0, c.Len())
	for _, p := range c.Products() {
		levels = append(levels, p.Decomposition.Level)
		res.Cleaning.Sales += p.Cleaning.Sales
		res.Cleaning.Volume += p.Cleaning.Volume
		res.Cleaning.Price += p.Cleaning.Price
		if !p.HasRelevance {
			res.MissingRelevance = append(res.MissingRelevance, p.Key.String())
		}
		if !p.HasStorageCost {
			res.MissingStorageCost = append(res.MissingStorageCost, p.Key.String())
		}
	}

	res.MedianLevel = stats.CalculateMedianContinuous(levels)

	if exportPath != "" {
		if err := report.ExportDecomposition(exportPath, c); err != nil {
			return nil, err
		}
		res.ExportPath = exportPath
	}

	log.Info().
		Str("dataset", dataset).
		Int("products", res.Products).
		Int("sales_repaired", res.Cleaning.Sales).
		Int("volume_repaired", res.Cleaning.Volume).
		Int("price_repaired", res.Cleaning.Price).
		Msg("Catalog prepared")
	return res, nil
}

// ProductForecast is the demand model of one product and its point forecast.
type ProductForecast struct {
	Dataset       string      `json:"dataset"`
	Key           catalog.Key `json:"key"`
	Level         float64     `json:"level"`
	Trend         float64     `json:"trend"`
	CleanedMean   float64     `json:"cleaned_mean"`
	CleanedStdev  float64     `json:"cleaned_stdev"`
	SeasonalIndex []float64   `json:"seasonal_index"`
	Forecast      []int       `json:"forecast"`
	Chart         string      `json:"-"`
}

// Forecast returns the point forecast of one product over the next weeks after its history.
func Forecast(st *store.Store, dataset string, key catalog.Key, weeks int) (*ProductForecast, error) {
	if weeks < 1 {
		return nil, fmt.Errorf("forecast horizon must be at least one week, got %d", weeks)
	}
	c, err := st.Get(dataset)
	if err != nil {
		return nil, err
	}
	id, ok := c.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnknownProduct, key, dataset)
	}
	p := c.Get(id)
	d := p.Decomposition
	if d == nil {
		return nil, fmt.Errorf("%w: product %s has no demand model", simulation.ErrPrecondition, p.Key)
	}

	f := &ProductForecast{
		Dataset:       dataset,
		Key:           p.Key,
		Level:         d.Level,
		Trend:         d.Trend,
		CleanedMean:   d.CleanedMean,
		CleanedStdev:  d.CleanedStdev,
		SeasonalIndex: d.SeasonalIndex,
		Forecast:      make([]int, weeks),
		Chart:         report.ForecastChart(p.Key.String(), d, weeks),
	}
	for k := range f.Forecast {
		f.Forecast[k] = demand.Forecast(d, k)
	}
	return f, nil
}

// Simulate replays the configured order-up-to policy against the prepared catalog of dataset.
// Without a target file the policy stocks up to the point forecast times ForecastMultiplier.
func Simulate(ctx context.Context, st *store.Store, dataset string, sc config.SimulationConfig) (*simulation.Report, error) {
	c, err := st.Get(dataset)
	if err != nil {
		return nil, err
	}

	h := simulation.Horizon{Start: sc.StartWeek, End: sc.EndWeek}
	if h.End < 1 {
		return nil, fmt.Errorf("%w: invalid horizon [%d, %d)", simulation.ErrPrecondition, h.Start, h.End)
	}

	var targets *simulation.TargetTable
	if sc.TargetsPath != "" {
		targets, err = ingest.LoadTargets(sc.TargetsPath, c, h.End)
		if err != nil {
			return nil, err
		}
	} else {
		log.Info().Float64("multiplier", sc.ForecastMultiplier).Msg("No target file configured, stocking up to the point forecast")
		targets = simulation.ForecastTargets(c, h.End, sc.ForecastMultiplier)
	}

	engine, err := simulation.NewEngine(c, targets, h, simulation.Options{
		Runs:              sc.Runs,
		DemandModel:       sc.DemandModel,
		Seed:              sc.Seed,
		HoldingMultiplier: sc.HoldingMultiplier,
		DiscardPenalty:    sc.DiscardPenalty,
		Workers:           sc.Workers,
	})
	if err != nil {
		return nil, err
	}
	for _, key := range engine.Excluded() {
		log.Warn().Str("product", key.String()).Msg("Product excluded from simulation: missing relevance score or storage cost")
	}

	log.Info().
		Str("dataset", dataset).
		Int("start", h.Start).
		Int("end", h.End).
		Int("runs", sc.Runs).
		Str("model", sc.DemandModel.String()).
		Uint64("seed", sc.Seed).
		Msg("Starting simulation")

	r, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Float64("revenue", r.Summary.Revenue).
		Str("service_level", r.Summary.ServiceLevel.String()).
		Int("excluded", len(r.Excluded)).
		Msg("Simulation finished")
	return r, nil
}

// Published lists the files written for a report.
type Published struct {
	Results string `json:"results,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Publish writes the flat result table when ExportResults is set and the HTML report when
// OpenReport is set, opening the latter in the browser. Files default to resultsDir.
func Publish(r *simulation.Report, sc config.SimulationConfig, resultsDir, dataset string) (Published, error) {
	var out Published
	if !sc.ExportResults && !sc.OpenReport {
		return out, nil
	}

	path := sc.ExportPath
	if path == "" {
		if err := os.MkdirAll(resultsDir, 0755); err != nil {
			return out, fmt.Errorf("failed to create results directory: %w", err)
		}
		path = filepath.Join(resultsDir, dataset+".xlsx")
	}

	if sc.ExportResults {
		if err := report.ExportReport(path, r); err != nil {
			return out, err
		}
		out.Results = path
		log.Info().Str("path", path).Msg("Simulation results exported")
	}

	if sc.OpenReport {
		out.HTML = strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
		if err := report.WriteHTML(out.HTML, "Simulation: "+dataset, r); err != nil {
			return out, err
		}
		if err := report.Open(out.HTML); err != nil {
			log.Warn().Err(err).Str("path", out.HTML).Msg("Failed to open report in browser")
		}
	}
	return out, nil
}
