package ingest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"invsim/internal/catalog"
)

var (
	relevanceColumns = []column{
		{name: "chunkName", aliases: []string{"CHUNK_NAME", "chunk"}},
		{name: "relevanceScore", aliases: []string{"RELEVANCE_SCORE", "relevance", "score"}},
	}
	storageCostColumns = []column{
		{name: "sizeGroup", aliases: []string{"SIZE_GROUP", "size"}},
		{name: "unitStorageCost", aliases: []string{"STORAGE_COST", "storageCost", "cost"}},
	}
)

type pair struct {
	key   string
	value float64
}

// parsePair reads one key/value lookup row. Blank keys are skipped and a bad value is fatal.
func parsePair(line int, record []string, idx map[string]int, key, value string, lo, hi float64) RowResult[pair] {
	k := cell(record, idx, key)
	if k == "" {
		return skipped[pair](line, "blank %s", key)
	}
	v, err := parseNumber(cell(record, idx, value))
	if err != nil {
		return fatal[pair](line, "malformed %s for %q: %v", value, k, err)
	}
	if v < lo || v > hi {
		return fatal[pair](line, "%s %v for %q outside [%v, %v]", value, v, k, lo, hi)
	}
	return parsed(line, pair{key: k, value: v})
}

func foldPairs(t *Table, columns []column, lo, hi float64, set func(string, float64)) error {
	idx, err := resolve(t, columns)
	if err != nil {
		return err
	}
	key, value := columns[0].name, columns[1].name
	for i, record := range t.Rows {
		if blank(record) {
			continue
		}
		res := parsePair(i+2, record, idx, key, value, lo, hi)
		switch res.Status {
		case RowFatal:
			return fmt.Errorf("%w: %s line %d: %s", ErrSchema, t.Source, res.Line, res.Reason)
		case RowSkipped:
			log.Warn().Str("source", t.Source).Int("line", res.Line).Str("reason", res.Reason).Msg("Skipping lookup row")
		case RowOK:
			set(res.Value.key, res.Value.value)
		}
	}
	return nil
}

// RelevanceTable folds a chunk to relevance score table into l.
func RelevanceTable(t *Table, l catalog.Lookups) error {
	return foldPairs(t, relevanceColumns, 0, 1, func(chunk string, score float64) {
		l.Relevance[chunk] = score
	})
}

// StorageCostTable folds a size group to unit storage cost table into l.
func StorageCostTable(t *Table, l catalog.Lookups) error {
	return foldPairs(t, storageCostColumns, 0, math.Inf(1), l.SetStorageCost)
}

// LoadLookups reads both lookup files.
func LoadLookups(relevancePath, storageCostPath string) (catalog.Lookups, error) {
	l := catalog.NewLookups()

	t, err := ReadTable(relevancePath)
	if err != nil {
		return l, err
	}
	if err := RelevanceTable(t, l); err != nil {
		return l, err
	}

	t, err = ReadTable(storageCostPath)
	if err != nil {
		return l, err
	}
	if err := StorageCostTable(t, l); err != nil {
		return l, err
	}

	log.Info().Int("relevance", len(l.Relevance)).Int("storage_cost", len(l.StorageCost)).Msg("Lookups loaded")
	return l, nil
}
