package stats

import (
	"math"
	"testing"
)

func TestMeanStdDev(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		mean   float64
		sd     float64
	}{
		{"Empty", nil, 0, 1},
		{"SingleValue", []float64{4}, 4, 1},
		{"NoSpread", []float64{2, 2, 2}, 2, 1},
		{"Sample", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 5, math.Sqrt(32.0 / 7.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, sd := MeanStdDev(tt.values)
			if math.Abs(mean-tt.mean) > 1e-9 {
				t.Errorf("mean = %v, want %v", mean, tt.mean)
			}
			if math.Abs(sd-tt.sd) > 1e-9 {
				t.Errorf("sd = %v, want %v", sd, tt.sd)
			}
		})
	}
}

func TestCalculateMedianContinuous(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"Empty", []float64{}, 0},
		{"SingleItem", []float64{5.5}, 5.5},
		{"OddCount", []float64{1.1, 3.3, 2.2, 4.4, 5.5}, 3.3},
		{"EvenCount", []float64{1, 2, 3, 4}, 2.5},
		{"Unsorted", []float64{10.5, 2.5, 8.5, 4.5, 6.5}, 6.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateMedianContinuous(tt.values); got != tt.expected {
				t.Errorf("CalculateMedianContinuous() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

	tests := []struct {
		p        float64
		expected float64
	}{
		{0, 1},
		{0.5, 6},
		{0.85, 9},
		{0.95, 10},
		{1, 10},
	}

	for _, tt := range tests {
		if got := Percentile(values, tt.p); got != tt.expected {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.expected)
		}
	}
	if values[0] != 10 {
		t.Error("Percentile must not reorder its input")
	}
	if got := Percentile(nil, 0.5); got != 0 {
		t.Errorf("Percentile(nil) = %v, want 0", got)
	}
}
