// Package stats provides statistical utility functions for analyzers.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0-100) of values using the
// empirical distribution. Returns 0 for an empty slice. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(clamp(p/100), stat.Empirical, sorted, nil)
}

// Summary describes a distribution of scores such as clone similarities.
type Summary struct {
	Count int     `json:"count" yaml:"count"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	P50   float64 `json:"p50" yaml:"p50"`
	P95   float64 `json:"p95" yaml:"p95"`
}

// Summarize computes a Summary of values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Summary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}

func clamp(q float64) float64 {
	switch {
	case q < 0:
		return 0
	case q > 1:
		return 1
	}
	return q
}
