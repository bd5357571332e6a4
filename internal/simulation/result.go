package simulation

import (
	"encoding/json"
	"fmt"

	"invsim/internal/catalog"
	"invsim/internal/stats"
)

// ServiceLevel is a sold/demanded ratio. It is undefined when nothing was demanded and then
// serialises as null.
type ServiceLevel struct {
	Value float64
	Valid bool
}

// Ratio returns sold/demanded, or an undefined level when demanded is zero.
func Ratio(sold, demanded float64) ServiceLevel {
	if demanded <= 0 {
		return ServiceLevel{}
	}
	return ServiceLevel{Value: sold / demanded, Valid: true}
}

func (s ServiceLevel) String() string {
	if !s.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", s.Value)
}

func (s ServiceLevel) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func (s *ServiceLevel) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ServiceLevel{}
		return nil
	}
	if err := json.Unmarshal(b, &s.Value); err != nil {
		return err
	}
	s.Valid = true
	return nil
}

// WeekResult holds one week of one run.
type WeekResult struct {
	Week         int          `json:"week"`
	Revenue      float64      `json:"revenue"`
	Sold         int          `json:"sold"`
	Demanded     int          `json:"demanded"`
	Ordered      int          `json:"ordered"`
	Discarded    int          `json:"discarded"`
	Orders       int          `json:"orders"`
	Capacity     float64      `json:"capacity"`
	Relevance    float64      `json:"relevance"`
	HoldingCost  float64      `json:"holding_cost"`
	ServiceLevel ServiceLevel `json:"service_level"`
}

// ProductResult holds the horizon totals of one product in one run.
type ProductResult struct {
	ID        catalog.ProductID `json:"id"`
	Key       catalog.Key       `json:"key"`
	Ordered   int               `json:"ordered"`
	Sold      int               `json:"sold"`
	Demanded  int               `json:"demanded"`
	Discarded int               `json:"discarded"`
	Ending    int               `json:"ending"`
}

// RunResult is the outcome of one Monte-Carlo run over the horizon.
type RunResult struct {
	Run                int             `json:"run"`
	Revenue            float64         `json:"revenue"`
	TheoreticalRevenue float64         `json:"theoretical_revenue"`
	Sold               int             `json:"sold"`
	Demanded           int             `json:"demanded"`
	Ordered            int             `json:"ordered"`
	Discarded          int             `json:"discarded"`
	Ending             int             `json:"ending"`
	Orders             int             `json:"orders"`
	HoldingCost        float64         `json:"holding_cost"`
	DiscardCost        float64         `json:"discard_cost"`
	Capacity           float64         `json:"capacity"`
	RelevanceSold      float64         `json:"relevance_sold"`
	RelevanceDemanded  float64         `json:"relevance_demanded"`
	ServiceLevel       ServiceLevel    `json:"service_level"`
	RelevanceLevel     ServiceLevel    `json:"relevance_level"`
	Weeks              []WeekResult    `json:"weeks"`
	Products           []ProductResult `json:"products,omitempty"`
	Cells              CellTally       `json:"cells"`
	Excluded           []catalog.Key   `json:"excluded,omitempty"`
}

// WeeklyServiceLevels returns the per-week service levels in horizon order.
func (r RunResult) WeeklyServiceLevels() []ServiceLevel {
	out := make([]ServiceLevel, len(r.Weeks))
	for i, w := range r.Weeks {
		out[i] = w.ServiceLevel
	}
	return out
}

// Percentiles of a metric across runs.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P85 float64 `json:"p85"`
	P95 float64 `json:"p95"`
}

func percentilesOf(values []float64) Percentiles {
	return Percentiles{
		P50: stats.Percentile(values, 0.50),
		P85: stats.Percentile(values, 0.85),
		P95: stats.Percentile(values, 0.95),
	}
}

// WeekSummary averages one horizon week across runs.
type WeekSummary struct {
	Week         int          `json:"week"`
	Revenue      float64      `json:"revenue"`
	Sold         float64      `json:"sold"`
	Demanded     float64      `json:"demanded"`
	Capacity     float64      `json:"capacity"`
	Relevance    float64      `json:"relevance"`
	ServiceLevel ServiceLevel `json:"service_level"`
}

// Summary averages every metric across runs. Service levels average only the runs where they
// are defined.
type Summary struct {
	Runs               int           `json:"runs"`
	Revenue            float64       `json:"revenue"`
	TheoreticalRevenue float64       `json:"theoretical_revenue"`
	Sold               float64       `json:"sold"`
	Demanded           float64       `json:"demanded"`
	Ordered            float64       `json:"ordered"`
	Discarded          float64       `json:"discarded"`
	Orders             float64       `json:"orders"`
	HoldingCost        float64       `json:"holding_cost"`
	DiscardCost        float64       `json:"discard_cost"`
	Capacity           float64       `json:"capacity"`
	RelevanceSold      float64       `json:"relevance_sold"`
	ServiceLevel       ServiceLevel  `json:"service_level"`
	RelevanceLevel     ServiceLevel  `json:"relevance_level"`
	Weeks              []WeekSummary `json:"weeks"`
	RevenuePercentiles Percentiles   `json:"revenue_percentiles"`
	ServicePercentiles Percentiles   `json:"service_level_percentiles"`
}

// Report is the complete output of Engine.Run.
type Report struct {
	Horizon  Horizon       `json:"horizon"`
	Model    string        `json:"demand_model"`
	Seed     uint64        `json:"seed"`
	Runs     []RunResult   `json:"runs"`
	Summary  Summary       `json:"summary"`
	Excluded []catalog.Key `json:"excluded,omitempty"`
}

// levelMean averages the defined levels; it is undefined when none is.
type levelMean struct {
	sum float64
	n   int
}

func (m *levelMean) add(s ServiceLevel) {
	if s.Valid {
		m.sum += s.Value
		m.n++
	}
}

func (m levelMean) value() ServiceLevel {
	if m.n == 0 {
		return ServiceLevel{}
	}
	return ServiceLevel{Value: m.sum / float64(m.n), Valid: true}
}

// summarize reduces runs in run order so totals are independent of scheduling.
func summarize(runs []RunResult, weeks []int) Summary {
	s := Summary{Runs: len(runs), Weeks: make([]WeekSummary, len(weeks))}
	if len(runs) == 0 {
		return s
	}

	var sl, rl levelMean
	weekSL := make([]levelMean, len(weeks))
	revenues := make([]float64, 0, len(runs))
	levels := make([]float64, 0, len(runs))

	for _, r := range runs {
		s.Revenue += r.Revenue
		s.TheoreticalRevenue += r.TheoreticalRevenue
		s.Sold += float64(r.Sold)
		s.Demanded += float64(r.Demanded)
		s.Ordered += float64(r.Ordered)
		s.Discarded += float64(r.Discarded)
		s.Orders += float64(r.Orders)
		s.HoldingCost += r.HoldingCost
		s.DiscardCost += r.DiscardCost
		s.Capacity += r.Capacity
		s.RelevanceSold += r.RelevanceSold
		sl.add(r.ServiceLevel)
		rl.add(r.RelevanceLevel)

		revenues = append(revenues, r.Revenue)
		if r.ServiceLevel.Valid {
			levels = append(levels, r.ServiceLevel.Value)
		}

		for i, w := range r.Weeks {
			ws := &s.Weeks[i]
			ws.Revenue += w.Revenue
			ws.Sold += float64(w.Sold)
			ws.Demanded += float64(w.Demanded)
			ws.Capacity += w.Capacity
			ws.Relevance += w.Relevance
			weekSL[i].add(w.ServiceLevel)
		}
	}

	n := float64(len(runs))
	s.Revenue /= n
	s.TheoreticalRevenue /= n
	s.Sold /= n
	s.Demanded /= n
	s.Ordered /= n
	s.Discarded /= n
	s.Orders /= n
	s.HoldingCost /= n
	s.DiscardCost /= n
	s.Capacity /= n
	s.RelevanceSold /= n
	s.ServiceLevel = sl.value()
	s.RelevanceLevel = rl.value()

	for i := range s.Weeks {
		ws := &s.Weeks[i]
		ws.Week = weeks[i]
		ws.Revenue /= n
		ws.Sold /= n
		ws.Demanded /= n
		ws.Capacity /= n
		ws.Relevance /= n
		ws.ServiceLevel = weekSL[i].value()
	}

	s.RevenuePercentiles = percentilesOf(revenues)
	s.ServicePercentiles = percentilesOf(levels)
	return s
}
