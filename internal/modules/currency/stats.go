package currency

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// weightedStats returns the weighted mean and the population weighted
// standard deviation: sqrt(sum w*(x-mean)^2 / sum w). Deliberately not the
// sample-corrected form.
func weightedStats(prices, weights []float64) (mean, stddev float64) {
	mean = stat.Mean(prices, weights)
	variance := stat.MomentAbout(2, prices, mean, weights)
	return mean, math.Sqrt(variance)
}

// rejectOutliers keeps samples with |p - mean| <= 2*stddev and returns the
// filtered slices. Single pass; callers recompute statistics once afterwards
// and do not iterate further.
func rejectOutliers(prices, weights []float64, mean, stddev float64) ([]float64, []float64) {
	keptPrices := make([]float64, 0, len(prices))
	keptWeights := make([]float64, 0, len(weights))
	for i, p := range prices {
		if math.Abs(p-mean) <= 2*stddev {
			keptPrices = append(keptPrices, p)
			keptWeights = append(keptWeights, weights[i])
		}
	}
	return keptPrices, keptWeights
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
