package recovery

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrBiasIndex is returned when CorrectBias is given indices outside the
// sequences it operates on.
var ErrBiasIndex = errors.New("recovery: bias index out of range")

// CorrectBias aligns the segment of accel starting at biasIndex with the
// baseline before it. smoothed is the block-averaged acceleration and
// maxDerivIndex the block with the largest step; every sample from
// biasIndex onward is shifted by smoothed[maxDerivIndex] - mean(accel[:biasIndex]).
// An empty pre-bias segment has a baseline of zero. It returns the offset
// that was subtracted.
func CorrectBias(accel, smoothed []float64, biasIndex, maxDerivIndex int) (float64, error) {
	if maxDerivIndex < 0 || maxDerivIndex >= len(smoothed) {
		return 0, fmt.Errorf("%w: derivative index %d, %d smoothed windows", ErrBiasIndex, maxDerivIndex, len(smoothed))
	}
	if biasIndex < 0 || biasIndex > len(accel) {
		return 0, fmt.Errorf("%w: bias index %d, %d samples", ErrBiasIndex, biasIndex, len(accel))
	}

	var baseline float64
	if biasIndex > 0 {
		baseline = floats.Sum(accel[:biasIndex]) / float64(biasIndex)
	}

	offset := smoothed[maxDerivIndex] - baseline
	for i := biasIndex; i < len(accel); i++ {
		accel[i] -= offset
	}
	return offset, nil
}
