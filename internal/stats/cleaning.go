package stats

import "math"

// DefaultZ is the half-width, in standard deviations, of the acceptance interval used when
// clipping volume and price series.
const DefaultZ = 3.5

// CleanSales repairs a weekly sales series in a single pass.
// A present week with zero sales is indistinguishable from a gap in the feed, so it is replaced
// by the rounded mean of the present non-zero weeks. Weeks that are not present are copied through
// untouched. The returned count is the number of weeks whose value changed.
func CleanSales(sales []int, present []bool) ([]int, int) {
	out := make([]int, len(sales))
	copy(out, sales)

	sum := 0.0
	n := 0
	for w, v := range sales {
		if !isPresent(present, w) || v == 0 {
			continue
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		return out, 0
	}

	replacement := int(math.Round(sum / float64(n)))
	modified := 0
	for w, v := range sales {
		if isPresent(present, w) && v == 0 && replacement != 0 {
			out[w] = replacement
			modified++
		}
	}
	return out, modified
}

// CleanContinuous repairs a volume or price series with iterative sigma clipping.
//
// Every present value is tested against the open interval (max(mean-z*sd, 0), mean+z*sd), where
// mean and sd describe the other present values, excluded ones counted at the mean of the values
// still trusted. Values outside the interval are excluded and the statistics are recomputed until
// a full pass excludes nothing new. Excluded values are then replaced by the trusted mean, and the
// whole clip is repeated on its own output until it changes nothing, so cleaning a cleaned series
// is a no-op. Weeks that are not present are never read. The returned count is the number of
// entries whose value differs from the input.
func CleanContinuous(values []float64, present []bool, z float64) ([]float64, int) {
	out := make([]float64, len(values))
	copy(out, values)

	for range len(values) + 1 {
		if clip(out, present, z) == 0 {
			break
		}
	}

	modified := 0
	for w := range values {
		if out[w] != values[w] {
			modified++
		}
	}
	return out, modified
}

// clip runs one sigma-clipping round over values in place and returns the number of entries it
// rewrote.
func clip(values []float64, present []bool, z float64) int {
	excluded := make([]bool, len(values))
	mean := trustedMean(values, present, excluded, 0)

	for {
		// Exclusions found in a pass take effect together, so the outcome does not depend on
		// the order in which weeks are visited.
		var marked []int
		for w, v := range values {
			if !isPresent(present, w) || excluded[w] {
				continue
			}
			m, sd := boundsSample(values, present, excluded, mean, w)
			lo := math.Max(m-z*sd, 0)
			hi := m + z*sd
			if !(v > lo && v < hi) {
				marked = append(marked, w)
			}
		}
		if len(marked) == 0 {
			break
		}
		for _, w := range marked {
			excluded[w] = true
		}
		mean = trustedMean(values, present, excluded, mean)
	}

	changed := 0
	for w := range values {
		if excluded[w] && values[w] != mean {
			values[w] = mean
			changed++
		}
	}
	return changed
}

// boundsSample returns the statistics a candidate is judged against: those of the other present
// values with every excluded value standing at replacement, or of the whole present series when
// fewer than two others exist.
func boundsSample(values []float64, present, excluded []bool, replacement float64, candidate int) (float64, float64) {
	others := make([]float64, 0, len(values))
	for w, v := range values {
		if w == candidate || !isPresent(present, w) {
			continue
		}
		if excluded[w] {
			v = replacement
		}
		others = append(others, v)
	}
	if len(others) < 2 {
		others = append(others, values[candidate])
	}
	return MeanStdDev(others)
}

// trustedMean is the mean of present, non-excluded values. It falls back to previous once
// nothing is trusted any more.
func trustedMean(values []float64, present, excluded []bool, previous float64) float64 {
	sum := 0.0
	n := 0
	for w, v := range values {
		if !isPresent(present, w) || excluded[w] {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return previous
	}
	return sum / float64(n)
}

func isPresent(present []bool, w int) bool {
	return w < len(present) && present[w]
}
