package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat/distuv"

	"invsim/internal/report"
	"invsim/internal/stats"
)

// GeneratorConfig describes a synthetic sales history.
type GeneratorConfig struct {
	Scenario     string // mild, chaos, drift
	Distribution string // normal or poisson
	Chunks       int
	BaseYear     int
	Years        int
	Seed         uint64
}

var (
	categories = []string{"sofas", "beds", "tables"}
	sizes      = []string{"S", "M", "L", "2XL"}
	// volume per unit in cubic metres, by size
	sizeVolume = map[string]float64{"S": 0.2, "M": 0.4, "L": 0.8, "2XL": 1.5}
)

// Dataset is a generated history with its lookup tables.
type Dataset struct {
	Observations report.Sheet
	Relevance    report.Sheet
	StorageCost  report.Sheet
}

// Generate builds a dataset. Every product follows a yearly sine season around a random level.
// The chaos scenario injects demand spikes, zero-sales weeks and price outliers and leaves the
// last chunk without a relevance score; drift adds a 50% rise over the history.
func Generate(cfg GeneratorConfig) Dataset {
	if cfg.Chunks <= 0 {
		cfg.Chunks = 4
	}
	if cfg.Years <= 0 {
		cfg.Years = 2
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	src := rand.NewPCG(cfg.Seed, 1)
	nWeeks := cfg.Years * stats.NSeasons

	d := Dataset{
		Observations: report.Sheet{
			Name:   "Observations",
			Header: []string{"year", "week", "quantitySold", "category", "shop", "chunkName", "sizeGroup", "averageVolumeM3", "averagePrice"},
		},
		Relevance:   report.Sheet{Name: "Relevance", Header: []string{"chunkName", "relevanceScore"}},
		StorageCost: report.Sheet{Name: "StorageCost", Header: []string{"sizeGroup", "unitStorageCost"}},
	}

	for c := 0; c < cfg.Chunks; c++ {
		chunk := fmt.Sprintf("chunk_%02d", c+1)
		category := categories[c%len(categories)]
		if cfg.Scenario != "chaos" || c < cfg.Chunks-1 {
			d.Relevance.Rows = append(d.Relevance.Rows, []any{chunk, math.Round(rng.Float64()*100) / 100})
		}

		for _, size := range sizes {
			level := 5 + rng.Float64()*20
			amplitude := 0.2 + rng.Float64()*0.4
			phase := rng.Float64() * 2 * math.Pi
			price := math.Round(50 + rng.Float64()*400)

			for w := 0; w < nWeeks; w++ {
				season := 1 + amplitude*math.Sin(2*math.Pi*float64(w%stats.NSeasons)/stats.NSeasons+phase)
				expected := level * season
				if cfg.Scenario == "drift" {
					expected *= 1 + 0.5*float64(w)/float64(nWeeks)
				}

				sales := draw(cfg.Distribution, expected, src)
				p := price * (1 + 0.05*(rng.Float64()-0.5))
				if cfg.Scenario == "chaos" {
					switch u := rng.Float64(); {
					case u < 0.03:
						sales *= 5
					case u < 0.06:
						sales = 0
					}
					if rng.Float64() < 0.02 {
						p *= 10
					}
				}

				d.Observations.Rows = append(d.Observations.Rows, []any{
					cfg.BaseYear + w/stats.NSeasons,
					w%stats.NSeasons + 1,
					sales,
					category,
					"main",
					chunk,
					size,
					sizeVolume[size] * (1 + 0.1*(rng.Float64()-0.5)),
					math.Round(p*100) / 100,
				})
			}
		}
	}

	for _, size := range sizes {
		d.StorageCost.Rows = append(d.StorageCost.Rows, []any{size, sizeVolume[size] * 0.05})
	}
	return d
}

func draw(distribution string, expected float64, src rand.Source) int {
	if expected <= 0 {
		return 0
	}
	var x float64
	if distribution == "poisson" {
		x = distuv.Poisson{Lambda: expected, Src: src}.Rand()
	} else {
		x = distuv.Normal{Mu: expected, Sigma: 0.2 * expected, Src: src}.Rand()
	}
	return int(math.Max(0, math.Round(x)))
}

// Save writes the three tables as <name>.<format>, <name>_relevance.<format> and
// <name>_storage_cost.<format>. Format is csv or xlsx.
func Save(outDir, name, format string, d Dataset) ([]string, error) {
	if format != "csv" && format != "xlsx" {
		return nil, fmt.Errorf("unsupported format %q (want csv or xlsx)", format)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	files := []struct {
		suffix string
		sheet  report.Sheet
	}{
		{"", d.Observations},
		{"_relevance", d.Relevance},
		{"_storage_cost", d.StorageCost},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(outDir, name+f.suffix+"."+format)
		var err error
		if format == "csv" {
			err = report.WriteCSV(path, f.sheet)
		} else {
			err = report.WriteXLSX(path, f.sheet)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
