package simulation

// CellState is the outcome of one (product, week) cell.
type CellState int

const (
	CellEmpty CellState = iota
	CellOrdered
	CellSold
	CellPartiallySold
	CellUnsold
	CellCarriedForward
)

func (s CellState) String() string {
	switch s {
	case CellEmpty:
		return "empty"
	case CellOrdered:
		return "ordered"
	case CellSold:
		return "sold"
	case CellPartiallySold:
		return "partially_sold"
	case CellUnsold:
		return "unsold"
	case CellCarriedForward:
		return "carried_forward"
	default:
		return "unknown"
	}
}

// settle moves a stocked cell to its selling outcome.
func settle(stock, sold int) CellState {
	switch {
	case stock == 0:
		return CellEmpty
	case sold == stock:
		return CellSold
	case sold > 0:
		return CellPartiallySold
	default:
		return CellUnsold
	}
}

// CellTally counts cells by final state.
type CellTally struct {
	Empty          int `json:"empty"`
	Sold           int `json:"sold"`
	PartiallySold  int `json:"partially_sold"`
	Unsold         int `json:"unsold"`
	CarriedForward int `json:"carried_forward"`
}

func (t *CellTally) add(s CellState) {
	switch s {
	case CellEmpty:
		t.Empty++
	case CellSold:
		t.Sold++
	case CellPartiallySold:
		t.PartiallySold++
	case CellUnsold:
		t.Unsold++
	case CellCarriedForward:
		t.CarriedForward++
	}
}

// Total is the number of cells counted.
func (t CellTally) Total() int {
	return t.Empty + t.Sold + t.PartiallySold + t.Unsold + t.CarriedForward
}

// runState is the private, mutable state of one Monte-Carlo run.
type runState struct {
	onHand   []int
	result   RunResult
	products []ProductResult
}

func newRunState(run, products, weeks int) *runState {
	return &runState{
		onHand:   make([]int, products),
		result:   RunResult{Run: run, Weeks: make([]WeekResult, 0, weeks)},
		products: make([]ProductResult, products),
	}
}
