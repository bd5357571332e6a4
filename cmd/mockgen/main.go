package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"invsim/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "normal", "Distribution to use: normal, poisson")
	outDir := flag.String("out", "./testdata", "Output directory for mock files")
	name := flag.String("name", "mock_sales", "Base file name of the generated tables")
	format := flag.String("format", "csv", "Output format: csv, xlsx")
	chunks := flag.Int("chunks", 4, "Number of chunks to generate (four size groups each)")
	baseYear := flag.Int("base-year", 2018, "First year of the history")
	years := flag.Int("years", 2, "Number of years of history")
	seed := flag.Uint64("seed", 1, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Chunks:       *chunks,
		BaseYear:     *baseYear,
		Years:        *years,
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Chunks: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Chunks, *outDir)

	paths, err := engine.Save(*outDir, *name, *format, engine.Generate(cfg))
	if err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	fmt.Println("Done.")
}
