package currency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightedStats(t *testing.T) {
	// Equal weights reduce to the plain population statistics.
	prices := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	weights := []float64{1, 1, 1, 1, 1, 1, 1, 1}

	mean, stddev := weightedStats(prices, weights)
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, stddev, 1e-9)
}

func TestWeightedStats_WeightsShiftMean(t *testing.T) {
	prices := []float64{1, 3}
	weights := []float64{3, 1}

	mean, _ := weightedStats(prices, weights)
	assert.InDelta(t, 1.5, mean, 1e-9)
}

func TestRejectOutliers(t *testing.T) {
	// Twenty sensible listings and one troll price.
	prices := make([]float64, 0, 21)
	weights := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		prices = append(prices, 0.01)
		weights = append(weights, 1)
	}
	prices = append(prices, 100)
	weights = append(weights, 1)

	mean, stddev := weightedStats(prices, weights)
	assert.Greater(t, stddev, mean/2)

	keptPrices, keptWeights := rejectOutliers(prices, weights, mean, stddev)
	assert.Len(t, keptPrices, 20)
	assert.Len(t, keptWeights, 20)

	mean, stddev = weightedStats(keptPrices, keptWeights)
	assert.InDelta(t, 0.01, mean, 1e-9)
	assert.InDelta(t, 0.0, stddev, 1e-9)
}

func TestRejectOutliers_TightDataKeepsEverything(t *testing.T) {
	prices := []float64{10, 10.5, 9.5, 10.2}
	weights := []float64{1, 2, 1, 1}

	mean, stddev := weightedStats(prices, weights)
	kept, _ := rejectOutliers(prices, weights, mean, stddev)
	assert.Len(t, kept, 4)
}

func TestSum(t *testing.T) {
	assert.Equal(t, 6.0, sum([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, sum(nil))
	assert.False(t, math.IsNaN(sum([]float64{})))
}
