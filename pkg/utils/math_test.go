package utils

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		expected float64
	}{
		{1.23456, 2, 1.23},
		{1.235, 1, 1.2},
		{0.1 + 0.2, 6, 0.3},
		{-2.5, 0, -3},
	}

	for _, tt := range tests {
		result := Round(tt.value, tt.decimals)
		if result != tt.expected {
			t.Errorf("Round(%f, %d) = %f, expected %f", tt.value, tt.decimals, result, tt.expected)
		}
	}
}

func TestFinite(t *testing.T) {
	if !Finite(1, 2, 3) {
		t.Error("expected finite values")
	}
	if Finite(1, math.NaN()) {
		t.Error("NaN should not be finite")
	}
	if Finite(math.Inf(-1)) {
		t.Error("-Inf should not be finite")
	}
}

func TestRadians(t *testing.T) {
	if math.Abs(Radians(180)-math.Pi) > 1e-12 {
		t.Errorf("Radians(180) = %f", Radians(180))
	}
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		weights  []float64
		expected float64
	}{
		{"unweighted", []float64{1, 2, 3}, nil, 2},
		{"weighted", []float64{1, 3}, []float64{3, 1}, 1.5},
		{"zero weights", []float64{1, 3}, []float64{0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeightedMean(tt.values, tt.weights); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("WeightedMean = %f, expected %f", got, tt.expected)
			}
		})
	}
}
