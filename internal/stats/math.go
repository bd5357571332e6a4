package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// DegenerateStdDev stands in for the standard deviation of a sample that has fewer than two
// observations or no spread at all. It keeps open intervals around the mean non-empty.
const DegenerateStdDev = 1.0

// spreadEpsilon is the relative spread below which a sample counts as constant.
const spreadEpsilon = 1e-12

// MeanStdDev returns the mean and the sample standard deviation of values.
// An empty sample has mean 0. Samples with fewer than two values, or whose spread is lost in
// rounding, report DegenerateStdDev.
func MeanStdDev(values []float64) (mean, sd float64) {
	switch len(values) {
	case 0:
		return 0, DegenerateStdDev
	case 1:
		return values[0], DegenerateStdDev
	}

	mean, sd = stat.MeanStdDev(values, nil)
	if math.IsNaN(sd) || sd <= spreadEpsilon*math.Abs(mean) || sd == 0 {
		sd = DegenerateStdDev
	}
	return mean, sd
}

// CalculateMedianContinuous finds the median value in a slice of floats.
func CalculateMedianContinuous(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return temp[n/2]
	}
	return (temp[n/2-1] + temp[n/2]) / 2.0
}

// Percentile returns the nearest-rank p-quantile (0 <= p <= 1) of values without mutating them.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	idx := int(float64(len(temp)) * p)
	if idx >= len(temp) {
		idx = len(temp) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return temp[idx]
}
