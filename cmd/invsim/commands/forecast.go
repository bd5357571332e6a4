package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"invsim/internal/catalog"
	"invsim/internal/pipeline"
)

var forecastOpts struct {
	name      string
	chunk     string
	category  string
	sizeGroup string
	weeks     int
	chart     bool
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print the demand model and point forecast of one product",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, err := datasetName(forecastOpts.name)
		if err != nil {
			return err
		}
		if err := ensureCatalog(cmd.Context(), dataset); err != nil {
			return err
		}

		key := catalog.Key{Chunk: forecastOpts.chunk, Category: forecastOpts.category, SizeGroup: forecastOpts.sizeGroup}
		f, err := pipeline.Forecast(catalogs, dataset, key, forecastOpts.weeks)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "product: %s\n", f.Key)
		fmt.Fprintf(out, "level %.3f, trend %.4f/week, noise %.3f ± %.3f\n", f.Level, f.Trend, f.CleanedMean, f.CleanedStdev)
		for k, v := range f.Forecast {
			fmt.Fprintf(out, "week +%-3d %6d  (season %.3f)\n", k, v, f.SeasonalIndex[k%len(f.SeasonalIndex)])
		}
		if forecastOpts.chart {
			fmt.Fprintln(out, f.Chart)
		}
		return nil
	},
}

func init() {
	flags := forecastCmd.Flags()
	flags.StringVar(&forecastOpts.name, "name", "", "dataset name (defaults to the configured dataset)")
	flags.StringVar(&forecastOpts.chunk, "chunk", "", "chunk name")
	flags.StringVar(&forecastOpts.category, "category", "", "product category")
	flags.StringVar(&forecastOpts.sizeGroup, "size", "", "size group")
	flags.IntVar(&forecastOpts.weeks, "weeks", 12, "forecast horizon in weeks")
	flags.BoolVar(&forecastOpts.chart, "chart", false, "print a Mermaid chart of the forecast")
	_ = forecastCmd.MarkFlagRequired("chunk")
	_ = forecastCmd.MarkFlagRequired("category")
	_ = forecastCmd.MarkFlagRequired("size")
}
