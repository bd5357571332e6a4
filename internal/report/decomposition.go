package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"invsim/internal/catalog"
	"invsim/internal/stats"
)

// DecompositionSheet lists one row per prepared product: identity, lookups, residual noise,
// level, trend and the 52 seasonal indices.
func DecompositionSheet(c *catalog.Catalog) Sheet {
	header := []string{"productGroup", "chunk", "sizeGroup", "shop", "storageCost", "relevanceScore", "cleanMean", "cleanStdev", "level", "trend", "meanPrice", "meanVolume", "cleanedSales", "cleanedVolume", "cleanedPrice"}
	for s := 0; s < stats.NSeasons; s++ {
		header = append(header, fmt.Sprintf("SI%d", s))
	}

	rows := make([][]any, 0, c.Len())
	for _, p := range c.Products() {
		d := p.Decomposition
		if d == nil {
			continue
		}
		row := []any{
			p.Key.Category, p.Key.Chunk, p.Key.SizeGroup, p.Shop,
			lookup(p.StorageCost, p.HasStorageCost), lookup(p.Relevance, p.HasRelevance),
			d.CleanedMean, d.CleanedStdev, d.Level, d.Trend,
			p.MeanPrice, p.MeanVolume,
			p.Cleaning.Sales, p.Cleaning.Volume, p.Cleaning.Price,
		}
		for _, si := range d.SeasonalIndex {
			row = append(row, si)
		}
		rows = append(rows, row)
	}
	return Sheet{Name: "Decomposition", Header: header, Rows: rows}
}

func lookup(v float64, ok bool) any {
	if !ok {
		return ""
	}
	return v
}

// ExportDecomposition writes the decomposition sheet as CSV or XLSX.
func ExportDecomposition(path string, c *catalog.Catalog) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(path, DecompositionSheet(c))
	case ".xlsx":
		return WriteXLSX(path, DecompositionSheet(c))
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}
