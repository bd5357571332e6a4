package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NSeasons is the number of season positions in a year of weekly data.
const NSeasons = 52

// Decomposition is the multiplicative seasonal-trend model of one product's cleaned sales.
//
// Expected sales in week w of the history are (Level + Trend*w) * SeasonalIndex[w mod 52] and
// the observed sales scatter around that value by a multiplicative factor with mean CleanedMean
// and standard deviation CleanedStdev.
type Decomposition struct {
	NWeeks        int       `json:"n_weeks"`
	SeasonalIndex []float64 `json:"seasonal_index"`
	Level         float64   `json:"level"`
	Trend         float64   `json:"trend"`
	CleanedMean   float64   `json:"cleaned_mean"`
	CleanedStdev  float64   `json:"cleaned_stdev"`
	// Residuals holds the multiplicative noise per historical week; NaN where the week had no
	// usable observation.
	Residuals []float64 `json:"-"`
}

// Baseline returns level + trend*t for a week index t counted from the start of the history.
func (d Decomposition) Baseline(t int) float64 {
	return d.Level + d.Trend*float64(t)
}

// Season returns the seasonal index for an arbitrary week index, wrapping negative values.
func (d Decomposition) Season(t int) float64 {
	n := len(d.SeasonalIndex)
	if n == 0 {
		return 1
	}
	return d.SeasonalIndex[((t%n)+n)%n]
}

// Decompose derives seasonal indices, level, trend and residual noise from a cleaned sales
// series. Weeks that are not present are ignored by every step.
func Decompose(sales []float64, present []bool, nSeasons int) Decomposition {
	if nSeasons <= 0 {
		nSeasons = NSeasons
	}
	n := len(sales)

	si := SeasonalIndices(sales, present, nSeasons)

	// Deseasonalise and regress on the week index.
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	deseasonalized := make([]float64, n)
	for w := 0; w < n; w++ {
		deseasonalized[w] = math.NaN()
		idx := si[w%nSeasons]
		if !isPresent(present, w) || idx == 0 {
			continue
		}
		deseasonalized[w] = sales[w] / idx
		xs = append(xs, float64(w))
		ys = append(ys, deseasonalized[w])
	}

	var level, trend float64
	switch len(xs) {
	case 0:
	case 1:
		level = ys[0]
	default:
		level, trend = stat.LinearRegression(xs, ys, nil, false)
	}

	residuals := make([]float64, n)
	noise := make([]float64, 0, len(xs))
	for w := 0; w < n; w++ {
		residuals[w] = math.NaN()
		if math.IsNaN(deseasonalized[w]) {
			continue
		}
		base := level + trend*float64(w)
		if base <= 0 {
			continue
		}
		residuals[w] = deseasonalized[w] / base
		noise = append(noise, residuals[w])
	}

	mean, sd := 1.0, DegenerateStdDev
	if len(noise) > 0 {
		mean, sd = MeanStdDev(noise)
	}

	return Decomposition{
		NWeeks:        n,
		SeasonalIndex: si,
		Level:         level,
		Trend:         trend,
		CleanedMean:   mean,
		CleanedStdev:  sd,
		Residuals:     residuals,
	}
}

// SeasonalIndices computes one multiplicative index per season position from centred moving
// averages and rescales them so they sum to nSeasons.
func SeasonalIndices(sales []float64, present []bool, nSeasons int) []float64 {
	n := len(sales)

	// Prefix sums over present weeks make every window mean O(1).
	sum := make([]float64, n+1)
	count := make([]int, n+1)
	for w := 0; w < n; w++ {
		sum[w+1] = sum[w]
		count[w+1] = count[w]
		if isPresent(present, w) {
			sum[w+1] += sales[w]
			count[w+1]++
		}
	}

	ratioSum := make([]float64, nSeasons)
	ratioCount := make([]int, nSeasons)
	for w := 0; w < n; w++ {
		if !isPresent(present, w) {
			continue
		}
		start, end := Window(w, n, nSeasons)
		c := count[end] - count[start]
		if c == 0 {
			continue
		}
		windowMean := (sum[end] - sum[start]) / float64(c)
		if windowMean == 0 {
			continue
		}
		ratioSum[w%nSeasons] += sales[w] / windowMean
		ratioCount[w%nSeasons]++
	}

	si := make([]float64, nSeasons)
	total := 0.0
	for s := range si {
		si[s] = 1
		if ratioCount[s] > 0 {
			si[s] = ratioSum[s] / float64(ratioCount[s])
		}
		total += si[s]
	}

	if total <= 0 {
		for s := range si {
			si[s] = 1
		}
		return si
	}
	scale := float64(nSeasons) / total
	for s := range si {
		si[s] *= scale
	}
	return si
}

// Window returns the half-open range [start, end) of the centred moving-average window for week
// w in a series of length n. The window is shifted, never shrunk, to stay inside the series, so
// it always spans width weeks when n >= width.
func Window(w, n, width int) (int, int) {
	if n <= width {
		return 0, n
	}
	start := w - width/2
	end := start + width
	if start < 0 {
		start, end = 0, width
	}
	if end > n {
		start, end = n-width, n
	}
	return start, end
}
