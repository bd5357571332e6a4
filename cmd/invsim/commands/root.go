package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"invsim/internal/config"
	"invsim/internal/logging"
	"invsim/internal/pipeline"
	"invsim/internal/store"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose  bool
	cfg      *config.AppConfig
	catalogs *store.Store
)

var rootCmd = &cobra.Command{
	Use:   "invsim",
	Short: "invsim decomposes retail demand and simulates inventory policies",
	Long: `Cleans two or more years of weekly per-product sales, volume and price observations, decomposes
them into seasonal indices, level and trend, and replays order-up-to policies against sampled demand
in a Monte-Carlo simulation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		catalogs = store.New(cfg.CacheDir)

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("invsim starting")
		return nil
	},
}

// Execute runs the root command; an interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	flags := rootCmd.PersistentFlags()
	flags.String("dataset", "", "observation table (.csv or .xlsx)")
	flags.String("relevance", "", "chunk to relevance score table")
	flags.String("storage-cost", "", "size group to unit storage cost table")
	flags.Int("base-year", 2018, "first calendar year of the history")
	flags.Int("years", 2, "number of consecutive years in the history")
	bind(flags, config.KeyDatasetPath, "dataset")
	bind(flags, config.KeyRelevancePath, "relevance")
	bind(flags, config.KeyStorageCostPath, "storage-cost")
	bind(flags, config.KeyBaseYear, "base-year")
	bind(flags, config.KeyYears, "years")

	rootCmd.AddCommand(decomposeCmd, forecastCmd, simulateCmd, serveCmd)
}

// bind routes a flag onto a configuration key; an unset flag leaves the .env or environment value.
func bind(flags *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

// datasetName resolves the cache name of the dataset to work on.
func datasetName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if cfg.Ingest.DatasetPath == "" {
		return "", fmt.Errorf("no dataset given: pass --name or configure %s", config.KeyDatasetPath)
	}
	return store.DatasetName(cfg.Ingest.DatasetPath), nil
}

// ensureCatalog decomposes the configured dataset when no prepared catalog is cached for it.
func ensureCatalog(ctx context.Context, dataset string) error {
	_, err := catalogs.Get(dataset)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if cfg.Ingest.DatasetPath == "" || store.DatasetName(cfg.Ingest.DatasetPath) != dataset {
		return fmt.Errorf("dataset %s has not been decomposed; run 'invsim decompose' first", dataset)
	}

	log.Info().Str("dataset", dataset).Msg("No cached catalog, decomposing first")
	_, err = pipeline.Decompose(ctx, cfg.Ingest, cfg.Cleaning, catalogs, "")
	return err
}
