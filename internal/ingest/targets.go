package ingest

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"invsim/internal/catalog"
	"invsim/internal/simulation"
)

var targetColumns = []column{
	{name: "week", aliases: []string{"t"}},
	{name: "chunkName", aliases: []string{"CHUNK_NAME", "chunk"}},
	{name: "category", aliases: []string{"PRODUCT_GROUP", "productGroup"}},
	{name: "sizeGroup", aliases: []string{"SIZE_GROUP", "size"}},
	{name: "target", aliases: []string{"orderUpTo", "order_up_to_level", "level"}},
}

type targetCell struct {
	week  int
	id    catalog.ProductID
	level int
}

// parseTarget reads one long-format policy row. Every problem is fatal.
func parseTarget(line int, record []string, idx map[string]int, c *catalog.Catalog) RowResult[targetCell] {
	week, err := parseInt(cell(record, idx, "week"))
	if err != nil {
		return fatal[targetCell](line, "malformed week: %v", err)
	}
	if week < 0 {
		return fatal[targetCell](line, "negative week %d", week)
	}
	level, err := parseInt(cell(record, idx, "target"))
	if err != nil {
		return fatal[targetCell](line, "malformed target: %v", err)
	}
	if level < 0 {
		return fatal[targetCell](line, "negative target %d", level)
	}
	key := catalog.Key{
		Chunk:     cell(record, idx, "chunkName"),
		Category:  cell(record, idx, "category"),
		SizeGroup: cell(record, idx, "sizeGroup"),
	}
	id, found := c.Lookup(key)
	if !found {
		return fatal[targetCell](line, "unknown product %s", key)
	}
	return parsed(line, targetCell{week: week, id: id, level: level})
}

// Targets builds the dense target table for c from a long-format table. The table spans at least
// minWeeks weeks, more when the file names later weeks. Absent cells stay zero.
func Targets(t *Table, c *catalog.Catalog, minWeeks int) (*simulation.TargetTable, error) {
	idx, err := resolve(t, targetColumns)
	if err != nil {
		return nil, err
	}

	cells := make([]targetCell, 0, len(t.Rows))
	weeks := minWeeks
	for i, record := range t.Rows {
		if blank(record) {
			continue
		}
		res := parseTarget(i+2, record, idx, c)
		if res.Status != RowOK {
			return nil, fmt.Errorf("%w: %s line %d: %s", simulation.ErrPrecondition, t.Source, res.Line, res.Reason)
		}
		cells = append(cells, res.Value)
		weeks = max(weeks, res.Value.week+1)
	}

	table := simulation.NewTargetTable(weeks, c.Len())
	for _, tc := range cells {
		if err := table.Set(tc.week, tc.id, tc.level); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// LoadTargets reads a target file for c.
func LoadTargets(path string, c *catalog.Catalog, minWeeks int) (*simulation.TargetTable, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	table, err := Targets(t, c, minWeeks)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", path).Int("weeks", table.Weeks()).Int("products", table.Products()).Msg("Target table loaded")
	return table, nil
}
