// sim/metrics_utils.go
package sim

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type IntOrFloat64 interface {
	int | int64 | float64
}

// CalculatePercentile is a util function that calculates the p-th percentile of
// a sorted data list, interpolating linearly between the closest ranks.
// Returns 0 for empty input.
func CalculatePercentile[T IntOrFloat64](data []T, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return float64(data[n-1])
	}
	if lowerIdx == upperIdx {
		return float64(data[lowerIdx])
	}
	lowerVal := float64(data[lowerIdx])
	upperVal := float64(data[upperIdx])
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// CalculateMean is a util function that calculates the mean of a data list.
func CalculateMean[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	xs := make([]float64, len(numbers))
	for i, v := range numbers {
		xs[i] = float64(v)
	}
	return stat.Mean(xs, nil)
}

// LatencyStats summarizes a latency sample.
type LatencyStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"` // population standard deviation
	P50    float64 `json:"p50"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
}

// NewLatencyStats computes statistics over samples. samples is not modified.
func NewLatencyStats(samples []float64) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	mean, std := stat.PopMeanStdDev(sorted, nil)
	return LatencyStats{
		Count:  len(sorted),
		Mean:   mean,
		StdDev: std,
		P50:    CalculatePercentile(sorted, 50),
		P99:    CalculatePercentile(sorted, 99),
		Max:    floats.Max(sorted),
	}
}

// JainIndex returns Jain's fairness index (Σx)² / (n·Σx²) over xs.
// It is 1 when every value is equal and 1/n when one value takes everything.
// Empty input yields 0; all-zero input yields 1.
func JainIndex(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := floats.Sum(xs)
	sq := floats.Dot(xs, xs)
	if sq == 0 {
		return 1
	}
	return sum * sum / (float64(len(xs)) * sq)
}
