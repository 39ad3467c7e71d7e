// Package stats provides the small descriptive-statistics helpers used by the
// forecaster and anomaly detector. All functions are total: degenerate input
// (empty or single-element sequences) yields 0 rather than an error, so
// downstream arithmetic never has to branch.
package stats

import "math"

// Mean returns the arithmetic mean of xs, or 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance of xs, or 0 when len(xs) < 2.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// TrendSlope returns the ordinary-least-squares slope of xs against its index
// sequence 0..n-1, using the closed form
//
//	slope = (n*Σxy − Σx*Σy) / (n*Σx² − (Σx)²)
//
// It returns 0 for sequences shorter than 2 or when the denominator is 0.
func TrendSlope(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range xs {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := float64(n)*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (float64(n)*sumXY - sumX*sumY) / denom
}
