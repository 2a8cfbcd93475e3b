// Package stats holds the small numeric toolkit shared by the analyzers.
// Every function is total: degenerate inputs (empty series, zero variance)
// return neutral zero values instead of NaN or Inf.
package stats

import (
	"math"
	"sort"
)

// Sum adds up values.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(values)))
}

// SampleStdDev returns the sample (n-1) standard deviation, 0 when n < 2.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// ZScore returns (value-mean)/stddev, or 0 when stddev is zero.
func ZScore(value, mean, stddev float64) float64 {
	if stddev == 0 || math.IsNaN(stddev) {
		return 0
	}
	return (value - mean) / stddev
}

// Median returns the middle value of a copy of values.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Quantile returns the q-th quantile (0..1) using linear interpolation
// between closest ranks.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Fences returns the Tukey outlier fences Q1-k*IQR and Q3+k*IQR.
func Fences(values []float64, k float64) (lower, upper float64) {
	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// LinearTrend fits y = intercept + slope*x by ordinary least squares with
// x = 0..n-1. Fewer than two points or a zero denominator yield zeros.
func LinearTrend(points []float64) (slope, intercept, rSquared float64) {
	n := float64(len(points))
	if n < 2 {
		if n == 1 {
			return 0, points[0], 0
		}
		return 0, 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range points {
		predicted := intercept + slope*float64(i)
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	return slope, intercept, rSquared
}

// NormalizedTrend returns the OLS slope divided by the first value of the
// series: the relative change per step. A zero first value yields 0.
func NormalizedTrend(points []float64) float64 {
	if len(points) < 2 || points[0] == 0 {
		return 0
	}
	slope, _, _ := LinearTrend(points)
	return slope / points[0]
}

// CoefficientOfVariation returns sample stddev / |mean|, 0 when mean is zero.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return SampleStdDev(values) / math.Abs(mean)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round2 rounds to two decimals, the precision used for reported amounts.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
