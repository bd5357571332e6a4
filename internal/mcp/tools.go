package mcp

import "invsim/internal/demand"

const decomposeDescription = "Load a weekly sales history (CSV or XLSX) with its relevance and storage-cost lookups, " +
	"clean every product series (zero sales repaired, volume and price outliers clipped) and decompose it into " +
	"seasonal indices, level, trend and residual noise. The prepared catalog is cached under the dataset name " +
	"(the file name without extension). Guidance: call this first; 'forecast_demand' and 'simulate_policy' read the cache."

const forecastDescription = "Show the demand model of one product (chunk, category, size group) and its point forecast " +
	"for the weeks following the history, with a chart. Requires 'decompose_catalog' on the dataset."

const simulateDescription = "Run a Monte-Carlo replay of an order-up-to policy over future weeks: each week stock is raised " +
	"(or discarded) to the target level, stochastic demand is drawn from the decomposition, lost sales are not backlogged. " +
	"Without a target file the policy stocks up to the point forecast times the forecast multiplier. Returns averaged revenue, " +
	"service level (units sold / units demanded; null when nothing was demanded), costs, P50/P85/P95 across runs and " +
	"a weekly service-level chart. Products without a relevance score or storage cost are excluded and listed."

// DecomposeInput overrides the configured dataset and cleaning settings. Omitted fields keep the
// configured value; an explicit zero is applied as given.
type DecomposeInput struct {
	DatasetPath     string   `json:"dataset_path,omitempty" jsonschema:"Observation table (.csv or .xlsx); defaults to the configured dataset"`
	RelevancePath   string   `json:"relevance_path,omitempty" jsonschema:"Chunk to relevance score table"`
	StorageCostPath string   `json:"storage_cost_path,omitempty" jsonschema:"Size group to unit storage cost table"`
	BaseYear        *int     `json:"base_year,omitempty" jsonschema:"First calendar year of the history"`
	Years           *int     `json:"years,omitempty" jsonschema:"Number of consecutive years in the history"`
	Z               *float64 `json:"z,omitempty" jsonschema:"Sigma-clipping half-width for volume and price"`
	ExportPath      string   `json:"export_path,omitempty" jsonschema:"Optional .csv or .xlsx file receiving the decomposition sheet"`
}

// ForecastInput names one product of a prepared dataset.
type ForecastInput struct {
	Dataset   string `json:"dataset,omitempty" jsonschema:"Dataset name; defaults to the configured dataset"`
	Chunk     string `json:"chunk" jsonschema:"Chunk name"`
	Category  string `json:"category" jsonschema:"Product category"`
	SizeGroup string `json:"size_group" jsonschema:"Size group label, e.g. M or 2XL"`
	Weeks     *int   `json:"weeks,omitempty" jsonschema:"Forecast horizon in weeks (default 12)"`
}

// SimulateInput overrides the configured simulation settings. Omitted fields keep the configured
// value; an explicit zero is applied as given.
type SimulateInput struct {
	Dataset            string   `json:"dataset,omitempty" jsonschema:"Dataset name; defaults to the configured dataset"`
	TargetsPath        string   `json:"targets_path,omitempty" jsonschema:"Order-up-to table (week, chunkName, category, sizeGroup, target)"`
	StartWeek          *int     `json:"start_week,omitempty" jsonschema:"First simulated week offset after the history"`
	EndWeek            *int     `json:"end_week,omitempty" jsonschema:"Exclusive last week offset"`
	Runs               *int     `json:"runs,omitempty" jsonschema:"Number of Monte-Carlo runs"`
	DemandModel        string   `json:"demand_model,omitempty" jsonschema:"How demand is drawn"`
	Seed               *uint64  `json:"seed,omitempty" jsonschema:"Base seed of the per-run random streams"`
	HoldingMultiplier  *float64 `json:"holding_multiplier,omitempty" jsonschema:"Scale of unit storage cost per carried unit per week"`
	DiscardPenalty     *float64 `json:"discard_penalty,omitempty" jsonschema:"Write-off cost per discarded unit"`
	ForecastMultiplier *float64 `json:"forecast_multiplier,omitempty" jsonschema:"Scale of the forecast-based policy when no target file is given"`
	Export             *bool    `json:"export,omitempty" jsonschema:"Write the per-run result table; defaults to the configured setting"`
}

func demandModels() []any {
	out := make([]any, len(demand.Models))
	for i, m := range demand.Models {
		out[i] = m
	}
	return out
}
