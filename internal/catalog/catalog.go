package catalog

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"invsim/internal/stats"
)

var (
	// ErrAlreadyPrepared is returned when Prepare runs on a catalog that has been prepared.
	ErrAlreadyPrepared = errors.New("catalog already prepared")
	// ErrSealed is returned when observations arrive after the catalog was sealed.
	ErrSealed = errors.New("catalog sealed")
)

// Catalog is an arena of product series addressed by ProductID.
//
// Products are created on their first observation. Seal sorts the arena by key so that ids, and
// every loop over them, follow the same order regardless of input row order. After Prepare the
// catalog is read-only and safe for concurrent readers.
type Catalog struct {
	nWeeks   int
	products []*ProductSeries
	index    map[Key]ProductID
	sealed   bool
	prepared bool
}

// New returns an empty catalog whose series span nWeeks weeks.
func New(nWeeks int) *Catalog {
	return &Catalog{
		nWeeks: nWeeks,
		index:  make(map[Key]ProductID),
	}
}

// Restore rebuilds a sealed catalog from persisted products. It is prepared when every product
// carries a decomposition.
func Restore(nWeeks int, products []*ProductSeries) (*Catalog, error) {
	c := New(nWeeks)
	prepared := len(products) > 0
	for _, p := range products {
		if len(p.Sales) != nWeeks || len(p.Volume) != nWeeks || len(p.Price) != nWeeks || len(p.Present) != nWeeks {
			return nil, fmt.Errorf("product %s: series length does not match %d weeks", p.Key, nWeeks)
		}
		if _, dup := c.index[p.Key]; dup {
			return nil, fmt.Errorf("product %s: duplicate key", p.Key)
		}
		if p.rows == nil {
			p.rows = make([]int, nWeeks)
		}
		c.index[p.Key] = ProductID(len(c.products))
		c.products = append(c.products, p)
		prepared = prepared && p.Prepared()
	}
	c.Seal()
	c.prepared = prepared
	return c, nil
}

// NWeeks is the length of every series in the catalog.
func (c *Catalog) NWeeks() int { return c.nWeeks }

// Len is the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// Prepared reports whether Prepare has completed.
func (c *Catalog) Prepared() bool { return c.prepared }

// Observe folds one weekly row into the product it belongs to, creating the product on first
// sight. The first shop seen for a product is kept.
func (c *Catalog) Observe(o Observation) error {
	if c.sealed {
		return ErrSealed
	}
	if o.Week < 0 || o.Week >= c.nWeeks {
		return fmt.Errorf("week %d outside [0, %d)", o.Week, c.nWeeks)
	}
	o.Key.SizeGroup = NormalizeSizeGroup(o.Key.SizeGroup)

	id, ok := c.index[o.Key]
	if !ok {
		id = ProductID(len(c.products))
		c.products = append(c.products, newProductSeries(o.Key, o.Shop, c.nWeeks))
		c.index[o.Key] = id
	}
	c.products[id].observe(o)
	return nil
}

// Lookup returns the id of the product with the given key. The size group is normalised first.
func (c *Catalog) Lookup(key Key) (ProductID, bool) {
	key.SizeGroup = NormalizeSizeGroup(key.SizeGroup)
	id, ok := c.index[key]
	return id, ok
}

// Get returns the product with the given id, or nil when the id is out of range.
func (c *Catalog) Get(id ProductID) *ProductSeries {
	if id < 0 || int(id) >= len(c.products) {
		return nil
	}
	return c.products[id]
}

// Products returns the products in id order. The slice must not be modified.
func (c *Catalog) Products() []*ProductSeries {
	return c.products
}

// Seal sorts the arena by key and renumbers the products. Further observations are rejected.
func (c *Catalog) Seal() {
	if c.sealed {
		return
	}
	slices.SortFunc(c.products, func(a, b *ProductSeries) int {
		return a.Key.Compare(b.Key)
	})
	for i, p := range c.products {
		p.ID = ProductID(i)
		c.index[p.Key] = p.ID
	}
	c.sealed = true
}

// ApplyLookups attaches relevance scores and storage costs to every product. Products whose chunk
// or size group is missing from the tables keep the corresponding flag unset.
func (c *Catalog) ApplyLookups(l Lookups) {
	for _, p := range c.products {
		p.Relevance, p.HasRelevance = l.Relevance[p.Key.Chunk]
		p.StorageCost, p.HasStorageCost = l.StorageCost[NormalizeSizeGroup(p.Key.SizeGroup)]
	}
}

// PrepareOptions tunes Prepare.
type PrepareOptions struct {
	// Z is the sigma-clipping half-width; zero means stats.DefaultZ.
	Z float64
	// Workers bounds the number of products prepared concurrently; zero means GOMAXPROCS.
	Workers int
}

// Prepare seals the catalog, then cleans and decomposes every product. Products share no state,
// so they are processed in parallel.
func (c *Catalog) Prepare(parent context.Context, opts PrepareOptions) error {
	if c.prepared {
		return ErrAlreadyPrepared
	}
	c.Seal()

	z := opts.Z
	if z <= 0 {
		z = stats.DefaultZ
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(workers)
	for _, p := range c.products {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.prepare(z)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("preparing catalog: %w", err)
	}
	if err := parent.Err(); err != nil {
		return fmt.Errorf("preparing catalog: %w", err)
	}

	c.prepared = true
	return nil
}
