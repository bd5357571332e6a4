package catalog

import (
	"cmp"
	"strings"

	"invsim/internal/stats"
)

// Key identifies one product variant.
type Key struct {
	Chunk     string `json:"chunk"`
	Category  string `json:"category"`
	SizeGroup string `json:"size_group"`
}

// Compare orders keys by chunk, then category, then size group.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Chunk, o.Chunk); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Category, o.Category); c != 0 {
		return c
	}
	return cmp.Compare(k.SizeGroup, o.SizeGroup)
}

func (k Key) String() string {
	return k.Chunk + "/" + k.Category + "/" + k.SizeGroup
}

// Group is the (chunk, category) pair an order is placed for; all size groups of a group
// arrive together.
func (k Key) Group() string {
	return k.Chunk + "/" + k.Category
}

// ProductID addresses a ProductSeries inside its Catalog.
type ProductID int

// Observation is one weekly row for one product. Week is the zero-based index into the
// concatenated history.
type Observation struct {
	Key    Key
	Shop   string
	Week   int
	Sales  int
	Volume float64
	Price  float64
}

// CleaningReport counts the entries the cleaner rewrote per series.
type CleaningReport struct {
	Sales  int `json:"sales"`
	Volume int `json:"volume"`
	Price  int `json:"price"`
}

// ProductSeries holds the raw history of one product and, once the catalog is prepared, its
// cleaned series and demand model.
type ProductSeries struct {
	ID   ProductID `json:"id"`
	Key  Key       `json:"key"`
	Shop string    `json:"shop"`

	Relevance      float64 `json:"relevance"`
	HasRelevance   bool    `json:"has_relevance"`
	StorageCost    float64 `json:"storage_cost"`
	HasStorageCost bool    `json:"has_storage_cost"`

	Sales   []int     `json:"sales"`
	Volume  []float64 `json:"volume"`
	Price   []float64 `json:"price"`
	Present []bool    `json:"present"`

	// rows counts the observations folded into each week.
	rows []int

	CleanSales    []int                `json:"clean_sales,omitempty"`
	CleanVolume   []float64            `json:"clean_volume,omitempty"`
	CleanPrice    []float64            `json:"clean_price,omitempty"`
	Cleaning      CleaningReport       `json:"cleaning"`
	Decomposition *stats.Decomposition `json:"decomposition,omitempty"`
	MeanVolume    float64              `json:"mean_volume"`
	MeanPrice     float64              `json:"mean_price"`
	SeasonalPrice []float64            `json:"seasonal_price,omitempty"`
}

func newProductSeries(key Key, shop string, nWeeks int) *ProductSeries {
	return &ProductSeries{
		Key:     key,
		Shop:    shop,
		Sales:   make([]int, nWeeks),
		Volume:  make([]float64, nWeeks),
		Price:   make([]float64, nWeeks),
		Present: make([]bool, nWeeks),
		rows:    make([]int, nWeeks),
	}
}

// observe folds one weekly row: sales add up, volume and price average over the rows of the week.
func (p *ProductSeries) observe(o Observation) {
	w := o.Week
	n := float64(p.rows[w])
	p.Sales[w] += o.Sales
	p.Volume[w] = (p.Volume[w]*n + o.Volume) / (n + 1)
	p.Price[w] = (p.Price[w]*n + o.Price) / (n + 1)
	p.Present[w] = true
	p.rows[w]++
}

// Prepared reports whether the demand model has been derived.
func (p *ProductSeries) Prepared() bool {
	return p.Decomposition != nil
}

// Simulatable reports whether both lookups resolved for the product.
func (p *ProductSeries) Simulatable() bool {
	return p.HasRelevance && p.HasStorageCost
}

// PriceAt returns the unit price for a future week offset.
func (p *ProductSeries) PriceAt(k int) float64 {
	n := len(p.SeasonalPrice)
	if n == 0 {
		return p.MeanPrice
	}
	return p.SeasonalPrice[((k%n)+n)%n]
}

func (p *ProductSeries) prepare(z float64) {
	p.CleanSales, p.Cleaning.Sales = stats.CleanSales(p.Sales, p.Present)
	p.CleanVolume, p.Cleaning.Volume = stats.CleanContinuous(p.Volume, p.Present, z)
	p.CleanPrice, p.Cleaning.Price = stats.CleanContinuous(p.Price, p.Present, z)

	sales := make([]float64, len(p.CleanSales))
	for w, v := range p.CleanSales {
		sales[w] = float64(v)
	}
	d := stats.Decompose(sales, p.Present, stats.NSeasons)
	p.Decomposition = &d

	p.MeanVolume = presentMean(p.CleanVolume, p.Present)
	p.MeanPrice = presentMean(p.CleanPrice, p.Present)

	sum := make([]float64, stats.NSeasons)
	count := make([]int, stats.NSeasons)
	for w, v := range p.CleanPrice {
		if !p.Present[w] {
			continue
		}
		sum[w%stats.NSeasons] += v
		count[w%stats.NSeasons]++
	}
	p.SeasonalPrice = make([]float64, stats.NSeasons)
	for s := range p.SeasonalPrice {
		p.SeasonalPrice[s] = p.MeanPrice
		if count[s] > 0 {
			p.SeasonalPrice[s] = sum[s] / float64(count[s])
		}
	}
}

func presentMean(values []float64, present []bool) float64 {
	sum := 0.0
	n := 0
	for w, v := range values {
		if !present[w] {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// NormalizeSizeGroup expands a leading repeat digit into X prefixes, so "2XS" becomes "XXS" and
// "3XL" becomes "XXXL". Labels without a leading digit are returned trimmed and unchanged.
func NormalizeSizeGroup(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return label
	}
	d := label[0]
	if d < '0' || d > '9' {
		return label
	}
	repeat := int(d-'0') - 1
	if repeat < 0 {
		repeat = 0
	}
	return strings.Repeat("X", repeat) + label[1:]
}
