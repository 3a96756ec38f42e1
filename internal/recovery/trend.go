package recovery

import (
	"gonum.org/v1/gonum/stat"
)

// TrendRecovery removes the local trend from data in place:
//
//	data[i] = data[i] - movingAverage[i] + mean
//
// The node firmware adds back mean(data). The clamped edge windows make
// mean(movingAverage) differ from mean(data), so that form shifts the
// overall mean of asymmetric sequences ([0 x8, 10 x4] with window 10 ends
// at 3.725 instead of 3.333). Here mean is taken over the moving average,
// which keeps the overall mean unchanged; for sequences symmetric about
// their centre both forms coincide.
func TrendRecovery(data []float64, windowSize int) {
	if len(data) == 0 {
		return
	}
	filtered := MovingAverage(data, windowSize)
	mean := stat.Mean(filtered, nil)
	for i := range data {
		data[i] = data[i] - filtered[i] + mean
	}
}
