package catalog

// Lookups holds the two side tables consulted before simulation: chunk to relevance score and
// normalised size group to unit storage cost.
type Lookups struct {
	Relevance   map[string]float64
	StorageCost map[string]float64
}

// NewLookups returns empty tables.
func NewLookups() Lookups {
	return Lookups{
		Relevance:   make(map[string]float64),
		StorageCost: make(map[string]float64),
	}
}

// SetStorageCost records the cost for a size group under its normalised label.
func (l Lookups) SetStorageCost(sizeGroup string, cost float64) {
	l.StorageCost[NormalizeSizeGroup(sizeGroup)] = cost
}
