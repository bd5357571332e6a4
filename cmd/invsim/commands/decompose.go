package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"invsim/internal/config"
	"invsim/internal/pipeline"
)

var decomposeExport string

var decomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Clean and decompose the observation history and cache the demand models",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := pipeline.Decompose(cmd.Context(), cfg.Ingest, cfg.Cleaning, catalogs, decomposeExport)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dataset:   %s\n", res.Dataset)
		fmt.Fprintf(out, "rows:      %d read, %d skipped\n", res.Rows.Rows, res.Rows.Skipped)
		for reason, n := range res.Rows.Reasons {
			fmt.Fprintf(out, "           %d x %s\n", n, reason)
		}
		fmt.Fprintf(out, "products:  %d\n", res.Products)
		fmt.Fprintf(out, "repaired:  %d sales, %d volume, %d price entries\n", res.Cleaning.Sales, res.Cleaning.Volume, res.Cleaning.Price)
		fmt.Fprintf(out, "no relevance score:  %d\n", len(res.MissingRelevance))
		fmt.Fprintf(out, "no storage cost:     %d\n", len(res.MissingStorageCost))
		fmt.Fprintf(out, "cache:     %s\n", res.CachePath)
		if res.ExportPath != "" {
			fmt.Fprintf(out, "exported:  %s\n", res.ExportPath)
		}
		return nil
	},
}

func init() {
	flags := decomposeCmd.Flags()
	flags.Float64("z", 3.5, "sigma-clipping half-width for volume and price")
	flags.Int("prepare-workers", 0, "products prepared concurrently (0 = all CPUs)")
	flags.StringVar(&decomposeExport, "export", "", "write the decomposition sheet to this .csv or .xlsx file")
	bind(flags, config.KeyCleaningZ, "z")
	bind(flags, config.KeyPrepareWorkers, "prepare-workers")
}
