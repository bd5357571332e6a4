package simulation

import (
	"fmt"
	"math"

	"invsim/internal/catalog"
	"invsim/internal/demand"
)

// TargetTable is the dense order-up-to policy: one non-negative level per (week, product).
// Entries never set are zero.
type TargetTable struct {
	weeks    int
	products int
	levels   [][]int
}

// NewTargetTable returns an all-zero table.
func NewTargetTable(weeks, products int) *TargetTable {
	levels := make([][]int, weeks)
	for w := range levels {
		levels[w] = make([]int, products)
	}
	return &TargetTable{weeks: weeks, products: products, levels: levels}
}

// Weeks is the number of future weeks the table covers.
func (t *TargetTable) Weeks() int { return t.weeks }

// Products is the number of products per week.
func (t *TargetTable) Products() int { return t.products }

// Set stores the order-up-to level for one cell.
func (t *TargetTable) Set(week int, id catalog.ProductID, level int) error {
	if week < 0 || week >= t.weeks {
		return fmt.Errorf("%w: target week %d outside [0, %d)", ErrPrecondition, week, t.weeks)
	}
	if id < 0 || int(id) >= t.products {
		return fmt.Errorf("%w: target product id %d outside [0, %d)", ErrPrecondition, id, t.products)
	}
	if level < 0 {
		return fmt.Errorf("%w: negative target %d for week %d, product %d", ErrPrecondition, level, week, id)
	}
	t.levels[week][id] = level
	return nil
}

// Level returns the order-up-to level of one cell.
func (t *TargetTable) Level(week int, id catalog.ProductID) int {
	return t.levels[week][id]
}

// ForecastTargets builds a baseline policy that stocks each product up to its point forecast
// scaled by multiplier. Products without a demand model get zero targets.
func ForecastTargets(c *catalog.Catalog, weeks int, multiplier float64) *TargetTable {
	if multiplier <= 0 {
		multiplier = 1
	}
	t := NewTargetTable(weeks, c.Len())
	for _, p := range c.Products() {
		if p.Decomposition == nil {
			continue
		}
		for k := 0; k < weeks; k++ {
			t.levels[k][p.ID] = int(math.Ceil(float64(demand.Forecast(p.Decomposition, k)) * multiplier))
		}
	}
	return t
}
