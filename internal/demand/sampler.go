package demand

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"invsim/internal/stats"
)

// Expected returns the unrounded demand the decomposition predicts for future week offset k,
// where k = 0 is the first week after the history.
func Expected(d *stats.Decomposition, k int) float64 {
	return d.Baseline(d.NWeeks+k) * d.Season(k)
}

// Forecast is the deterministic point forecast for future week offset k.
func Forecast(d *stats.Decomposition, k int) int {
	return int(math.Round(math.Max(0, Expected(d, k))))
}

// Sampler draws stochastic weekly demand. It is not safe for concurrent use; each Monte-Carlo
// run owns one.
type Sampler struct {
	model Model
	src   rand.Source
}

// NewSampler returns a sampler drawing from src.
func NewSampler(model Model, src rand.Source) *Sampler {
	return &Sampler{model: model, src: src}
}

// Model reports the sampling mode.
func (s *Sampler) Model() Model { return s.model }

// Draw returns one demand realisation for future week offset k. It is never negative.
func (s *Sampler) Draw(d *stats.Decomposition, k int) int {
	var v float64
	switch s.model {
	case Poisson:
		lambda := float64(Forecast(d, k))
		if lambda <= 0 {
			return 0
		}
		v = distuv.Poisson{Lambda: lambda, Src: s.src}.Rand()
	default:
		x := d.CleanedMean
		if d.CleanedStdev > 0 {
			x = distuv.Normal{Mu: d.CleanedMean, Sigma: d.CleanedStdev, Src: s.src}.Rand()
		}
		v = Expected(d, k) * math.Max(x, 0)
	}

	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	return n
}
