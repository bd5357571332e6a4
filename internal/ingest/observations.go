package ingest

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"invsim/internal/catalog"
	"invsim/internal/stats"
)

// ErrNoObservations is returned when an observation table has data rows but none of them can be used.
var ErrNoObservations = errors.New("no usable observations")

// Options fixes the calendar of the history: Years consecutive years starting at BaseYear.
type Options struct {
	BaseYear int
	Years    int
}

// NWeeks is the length of the concatenated history.
func (o Options) NWeeks() int {
	return o.Years * stats.NSeasons
}

// WeekIndex maps a (year, 1-based week) pair onto the history, reporting false when it falls
// outside.
func (o Options) WeekIndex(year, week int) (int, bool) {
	if year < o.BaseYear || year >= o.BaseYear+o.Years || week < 1 || week > stats.NSeasons {
		return 0, false
	}
	return (year-o.BaseYear)*stats.NSeasons + week - 1, true
}

var observationColumns = []column{
	{name: "year"},
	{name: "week", aliases: []string{"week_number"}},
	{name: "quantitySold", aliases: []string{"QTY_SALES", "sales", "quantity"}},
	{name: "category", aliases: []string{"PRODUCT_GROUP", "productGroup"}},
	{name: "shop", aliases: []string{"store"}, optional: true},
	{name: "chunkName", aliases: []string{"CHUNK_NAME", "chunk"}},
	{name: "sizeGroup", aliases: []string{"SIZE_GROUP", "size"}},
	{name: "averageVolumeM3", aliases: []string{"AVERAGE_M3", "volume"}},
	{name: "averagePrice", aliases: []string{"AVERAGE_PRICE", "price"}},
}

// ParseObservation turns one data row into an observation. Rows outside the history, without a
// chunk, or with a malformed number are skipped. Negative numbers clamp to zero and an empty
// price reads as zero.
func ParseObservation(line int, record []string, idx map[string]int, opts Options) RowResult[catalog.Observation] {
	year, err := parseInt(cell(record, idx, "year"))
	if err != nil {
		return malformed[catalog.Observation](line, "year", "malformed year: %v", err)
	}
	week, err := parseInt(cell(record, idx, "week"))
	if err != nil {
		return malformed[catalog.Observation](line, "week", "malformed week: %v", err)
	}
	w, inside := opts.WeekIndex(year, week)
	if !inside {
		return skipped[catalog.Observation](line, "outside history: year %d week %d", year, week)
	}

	chunk := cell(record, idx, "chunkName")
	if chunk == "" {
		return skipped[catalog.Observation](line, "missing chunk name")
	}

	sales, err := parseNumber(cell(record, idx, "quantitySold"))
	if err != nil {
		return malformed[catalog.Observation](line, "quantitySold", "malformed quantity sold: %v", err)
	}
	volume, err := parseNumber(cell(record, idx, "averageVolumeM3"))
	if err != nil {
		return malformed[catalog.Observation](line, "averageVolumeM3", "malformed volume: %v", err)
	}
	price := 0.0
	if raw := cell(record, idx, "averagePrice"); raw != "" {
		if price, err = parseNumber(raw); err != nil {
			return malformed[catalog.Observation](line, "averagePrice", "malformed price: %v", err)
		}
	}

	return parsed(line, catalog.Observation{
		Key: catalog.Key{
			Chunk:     chunk,
			Category:  cell(record, idx, "category"),
			SizeGroup: cell(record, idx, "sizeGroup"),
		},
		Shop:   cell(record, idx, "shop"),
		Week:   w,
		Sales:  int(math.Round(math.Max(sales, 0))),
		Volume: math.Max(volume, 0),
		Price:  math.Max(price, 0),
	})
}

// Observations folds every row of t into c. A missing required column fails before any row is
// read; malformed rows are logged, counted and skipped. A column that cannot be read on any row
// fails with ErrSchema, and a table whose rows are all skipped fails with ErrNoObservations.
func Observations(t *Table, c *catalog.Catalog, opts Options) (Summary, error) {
	var sum Summary
	idx, err := resolve(t, observationColumns)
	if err != nil {
		return sum, err
	}

	bad := make(map[string]int)

	for i, record := range t.Rows {
		if blank(record) {
			continue
		}
		res := ParseObservation(i+2, record, idx, opts)
		if res.Status == RowOK {
			if err := c.Observe(res.Value); err != nil {
				return sum, fmt.Errorf("%s line %d: %w", t.Source, res.Line, err)
			}
		} else {
			log.Warn().Str("source", t.Source).Int("line", res.Line).Str("reason", res.Reason).Msg("Skipping observation row")
			if res.Column != "" {
				bad[res.Column]++
			}
		}
		sum.count(res.Status, res.Reason)
	}

	if sum.Rows == 0 || sum.OK > 0 {
		return sum, nil
	}
	for _, col := range observationColumns {
		if bad[col.name] == sum.Rows {
			return sum, fmt.Errorf("%w: %s: column %s is malformed on every row", ErrSchema, t.Source, col.name)
		}
	}
	return sum, fmt.Errorf("%w: all %d rows of %s were skipped", ErrNoObservations, sum.Rows, t.Source)
}

// LoadCatalog reads an observation file into a new, unprepared catalog.
func LoadCatalog(path string, opts Options) (*catalog.Catalog, Summary, error) {
	if opts.Years < 1 {
		return nil, Summary{}, fmt.Errorf("history must span at least one year, got %d", opts.Years)
	}
	t, err := ReadTable(path)
	if err != nil {
		return nil, Summary{}, err
	}
	c := catalog.New(opts.NWeeks())
	sum, err := Observations(t, c, opts)
	if err != nil {
		return nil, sum, err
	}
	c.Seal()

	log.Info().Str("source", path).Int("rows", sum.Rows).Int("skipped", sum.Skipped).Int("products", c.Len()).Msg("Observations loaded")
	return c, sum, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
