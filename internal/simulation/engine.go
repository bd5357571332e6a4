package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"invsim/internal/catalog"
	"invsim/internal/demand"
)

// ErrPrecondition marks inputs the simulator refuses before simulating any week.
var ErrPrecondition = errors.New("simulation precondition violated")

// DefaultHoldingMultiplier converts a daily unit storage cost into a weekly one.
const DefaultHoldingMultiplier = 7

// Horizon is the half-open range [Start, End) of future week offsets to simulate.
type Horizon struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len is the number of simulated weeks.
func (h Horizon) Len() int { return h.End - h.Start }

// Weeks lists the week offsets in order.
func (h Horizon) Weeks() []int {
	out := make([]int, 0, h.Len())
	for k := h.Start; k < h.End; k++ {
		out = append(out, k)
	}
	return out
}

// Options configures an Engine.
type Options struct {
	Runs        int
	DemandModel demand.Model
	Seed        uint64
	// HoldingMultiplier scales unit storage cost per carried unit per week. Zero means
	// DefaultHoldingMultiplier.
	HoldingMultiplier float64
	// DiscardPenalty is the write-off cost per discarded unit. It is reported on its own and never
	// subtracted from revenue.
	DiscardPenalty float64
	// Workers bounds concurrent runs; zero means GOMAXPROCS.
	Workers int
}

// Engine replays an order-up-to policy against sampled demand.
type Engine struct {
	catalog  *catalog.Catalog
	targets  *TargetTable
	horizon  Horizon
	opts     Options
	active   []*catalog.ProductSeries
	groups   []int
	nGroups  int
	excluded []catalog.Key
}

// NewEngine validates every input and returns an engine ready to run. Products missing a
// relevance score or storage cost are left out of every run and listed by Excluded.
func NewEngine(c *catalog.Catalog, targets *TargetTable, h Horizon, opts Options) (*Engine, error) {
	switch {
	case c == nil:
		return nil, fmt.Errorf("%w: no catalog", ErrPrecondition)
	case !c.Prepared():
		return nil, fmt.Errorf("%w: catalog has not been prepared", ErrPrecondition)
	case h.Start < 0 || h.End <= h.Start:
		return nil, fmt.Errorf("%w: invalid horizon [%d, %d)", ErrPrecondition, h.Start, h.End)
	case opts.Runs < 1:
		return nil, fmt.Errorf("%w: run count %d", ErrPrecondition, opts.Runs)
	case targets == nil:
		return nil, fmt.Errorf("%w: no target table", ErrPrecondition)
	case targets.Products() != c.Len():
		return nil, fmt.Errorf("%w: target table has %d products, catalog has %d", ErrPrecondition, targets.Products(), c.Len())
	case targets.Weeks() < h.End:
		return nil, fmt.Errorf("%w: target table covers %d weeks, horizon ends at %d", ErrPrecondition, targets.Weeks(), h.End)
	case opts.HoldingMultiplier < 0:
		return nil, fmt.Errorf("%w: negative holding multiplier", ErrPrecondition)
	case opts.DiscardPenalty < 0:
		return nil, fmt.Errorf("%w: negative discard penalty", ErrPrecondition)
	}

	if opts.HoldingMultiplier == 0 {
		opts.HoldingMultiplier = DefaultHoldingMultiplier
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	e := &Engine{catalog: c, targets: targets, horizon: h, opts: opts}
	groupIDs := make(map[string]int)
	for _, p := range c.Products() {
		if !p.Simulatable() || p.Decomposition == nil {
			e.excluded = append(e.excluded, p.Key)
			continue
		}
		g, ok := groupIDs[p.Key.Group()]
		if !ok {
			g = len(groupIDs)
			groupIDs[p.Key.Group()] = g
		}
		e.active = append(e.active, p)
		e.groups = append(e.groups, g)
	}
	e.nGroups = len(groupIDs)
	return e, nil
}

// SetSeed replaces the base seed of the per-run random streams.
func (e *Engine) SetSeed(seed uint64) {
	e.opts.Seed = seed
}

// Excluded lists the products left out of the simulation.
func (e *Engine) Excluded() []catalog.Key {
	return e.excluded
}

// Run performs every Monte-Carlo run and aggregates them. A cancelled context aborts the whole
// simulation; partial results are never returned.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	runs := make([]RunResult, e.opts.Runs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for r := range runs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runs[r] = e.RunOnce(r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation aborted: %w", err)
	}

	return &Report{
		Horizon:  e.horizon,
		Model:    e.opts.DemandModel.String(),
		Seed:     e.opts.Seed,
		Runs:     runs,
		Summary:  summarize(runs, e.horizon.Weeks()),
		Excluded: e.excluded,
	}, nil
}

// RunOnce simulates the horizon once with the random stream of the given run number.
func (e *Engine) RunOnce(run int) RunResult {
	sampler := demand.NewSampler(e.opts.DemandModel, rand.NewPCG(e.opts.Seed, uint64(run)))
	st := newRunState(run, len(e.active), e.horizon.Len())
	for i, p := range e.active {
		st.products[i] = ProductResult{ID: p.ID, Key: p.Key}
	}

	ordering := make([]bool, e.nGroups)
	for k := e.horizon.Start; k < e.horizon.End; k++ {
		e.simulateWeek(st, sampler, k, k == e.horizon.End-1, ordering)
	}

	res := st.result
	res.Products = st.products
	res.ServiceLevel = Ratio(float64(res.Sold), float64(res.Demanded))
	res.RelevanceLevel = Ratio(res.RelevanceSold, res.RelevanceDemanded)
	res.DiscardCost = float64(res.Discarded) * e.opts.DiscardPenalty
	res.Excluded = e.excluded
	return res
}

func (e *Engine) simulateWeek(st *runState, sampler *demand.Sampler, k int, last bool, ordering []bool) {
	week := WeekResult{Week: k}
	clear(ordering)

	// Ordering: raise or cut every product to its target.
	for i, p := range e.active {
		target := e.targets.Level(k, p.ID)
		pr := &st.products[i]
		switch {
		case st.onHand[i] < target:
			week.Ordered += target - st.onHand[i]
			pr.Ordered += target - st.onHand[i]
			ordering[e.groups[i]] = true
		case st.onHand[i] > target:
			week.Discarded += st.onHand[i] - target
			pr.Discarded += st.onHand[i] - target
		}
		st.onHand[i] = target
		week.Capacity += float64(target) * p.MeanVolume
	}
	for _, placed := range ordering {
		if placed {
			week.Orders++
		}
	}

	// Selling and carry-over.
	for i, p := range e.active {
		stock := st.onHand[i]
		demanded := sampler.Draw(p.Decomposition, k)
		sold := min(demanded, stock)
		price := p.PriceAt(k)

		week.Demanded += demanded
		week.Sold += sold
		week.Revenue += price * float64(sold)
		week.Relevance += p.Relevance * float64(sold)
		st.result.TheoreticalRevenue += price * float64(demanded)
		st.result.RelevanceDemanded += p.Relevance * float64(demanded)

		pr := &st.products[i]
		pr.Demanded += demanded
		pr.Sold += sold

		st.onHand[i] = stock - sold
		state := settle(stock, sold)
		if last {
			pr.Ending = st.onHand[i]
		} else if st.onHand[i] > 0 {
			week.HoldingCost += float64(st.onHand[i]) * p.StorageCost * e.opts.HoldingMultiplier
			state = CellCarriedForward
		}
		st.result.Cells.add(state)
	}

	week.ServiceLevel = Ratio(float64(week.Sold), float64(week.Demanded))

	r := &st.result
	r.Revenue += week.Revenue
	r.Sold += week.Sold
	r.Demanded += week.Demanded
	r.Ordered += week.Ordered
	r.Discarded += week.Discarded
	r.Orders += week.Orders
	r.Capacity += week.Capacity
	r.RelevanceSold += week.Relevance
	r.HoldingCost += week.HoldingCost
	if last {
		for _, pr := range st.products {
			r.Ending += pr.Ending
		}
	}
	r.Weeks = append(r.Weeks, week)
}
