package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"invsim/internal/config"
	"invsim/internal/pipeline"
	"invsim/internal/report"
)

var simulateOpts struct {
	name  string
	chart bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay an order-up-to policy against sampled demand",
	Long: `Runs the Monte-Carlo inventory simulation over the weeks [start, end) following the history.
Targets come from --targets; without one the policy stocks up to the point forecast times
--forecast-multiplier.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, err := datasetName(simulateOpts.name)
		if err != nil {
			return err
		}
		if err := ensureCatalog(cmd.Context(), dataset); err != nil {
			return err
		}

		r, err := pipeline.Simulate(cmd.Context(), catalogs, dataset, cfg.Simulation)
		if err != nil {
			return err
		}
		published, err := pipeline.Publish(r, cfg.Simulation, filepath.Join(cfg.DataPath, "results"), dataset)
		if err != nil {
			return err
		}

		s := r.Summary
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "runs:           %d (%s demand, seed %d)\n", s.Runs, r.Model, r.Seed)
		fmt.Fprintf(out, "weeks:          [%d, %d)\n", r.Horizon.Start, r.Horizon.End)
		fmt.Fprintf(out, "revenue:        %.2f of %.2f theoretical (P50 %.2f, P85 %.2f, P95 %.2f)\n",
			s.Revenue, s.TheoreticalRevenue, s.RevenuePercentiles.P50, s.RevenuePercentiles.P85, s.RevenuePercentiles.P95)
		fmt.Fprintf(out, "service level:  %s (P50 %.4f, P85 %.4f, P95 %.4f)\n",
			s.ServiceLevel, s.ServicePercentiles.P50, s.ServicePercentiles.P85, s.ServicePercentiles.P95)
		fmt.Fprintf(out, "relevance:      %s\n", s.RelevanceLevel)
		fmt.Fprintf(out, "units:          %.1f sold, %.1f demanded, %.1f ordered, %.1f discarded\n", s.Sold, s.Demanded, s.Ordered, s.Discarded)
		fmt.Fprintf(out, "orders:         %.1f\n", s.Orders)
		fmt.Fprintf(out, "costs:          %.2f holding, %.2f discard\n", s.HoldingCost, s.DiscardCost)
		for _, key := range r.Excluded {
			fmt.Fprintf(out, "excluded:       %s\n", key)
		}
		if published.Results != "" {
			fmt.Fprintf(out, "results:        %s\n", published.Results)
		}
		if published.HTML != "" {
			fmt.Fprintf(out, "report:         %s\n", published.HTML)
		}
		if simulateOpts.chart {
			fmt.Fprintln(out, report.ServiceLevelChart(s))
		}
		return nil
	},
}

func init() {
	flags := simulateCmd.Flags()
	flags.StringVar(&simulateOpts.name, "name", "", "dataset name (defaults to the configured dataset)")
	flags.BoolVar(&simulateOpts.chart, "chart", false, "print a Mermaid chart of the weekly service level")

	flags.String("targets", "", "order-up-to table (.csv or .xlsx)")
	flags.Int("start", 0, "first simulated week offset")
	flags.Int("end", 52, "exclusive last week offset")
	flags.Int("runs", 100, "number of Monte-Carlo runs")
	flags.String("model", "normal", "demand model: normal or poisson")
	flags.Uint64("seed", 1234, "base seed of the per-run random streams")
	flags.Float64("holding-multiplier", 7, "scale of unit storage cost per carried unit per week")
	flags.Float64("discard-penalty", 0, "write-off cost per discarded unit")
	flags.Float64("forecast-multiplier", 1, "scale of the forecast-based policy without a target file")
	flags.Int("workers", 0, "concurrent runs (0 = all CPUs)")
	flags.Bool("export", false, "write the per-run result table")
	flags.String("export-path", "", "result table path (.csv or .xlsx)")
	flags.Bool("open", false, "write an HTML report and open it in the browser")

	bind(flags, config.KeyTargetsPath, "targets")
	bind(flags, config.KeyStartWeek, "start")
	bind(flags, config.KeyEndWeek, "end")
	bind(flags, config.KeyRuns, "runs")
	bind(flags, config.KeyDemandModel, "model")
	bind(flags, config.KeySeed, "seed")
	bind(flags, config.KeyHoldingMultiplier, "holding-multiplier")
	bind(flags, config.KeyDiscardPenalty, "discard-penalty")
	bind(flags, config.KeyForecastMultiplier, "forecast-multiplier")
	bind(flags, config.KeyWorkers, "workers")
	bind(flags, config.KeyExportResults, "export")
	bind(flags, config.KeyExportPath, "export-path")
	bind(flags, config.KeyOpenReport, "open")
}
