package diagnosis

import (
	"math"

	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/recovery"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// maxDerivative returns the block index with the largest absolute step
// from its predecessor, and that step. Ties keep the earliest index; an
// input with fewer than two blocks yields (0, 0).
func maxDerivative(smoothed []float64) (int, float64) {
	idx, best := 0, 0.0
	for i := 1; i < len(smoothed); i++ {
		if d := math.Abs(smoothed[i] - smoothed[i-1]); d > best {
			idx, best = i, d
		}
	}
	return idx, best
}

// CheckBias looks for a step-like offset in the block-averaged
// acceleration. A jump coinciding with a low-battery reading is reported;
// any gyroscope rate beyond GyroThreshold attributes the offset to a
// sudden rotation and realigns the post-jump segment with CorrectBias.
func (e *Engine) CheckBias(w *window.Window, _ metrics.Metrics) Verdict {
	size := e.params.WindowSize
	smoothed := recovery.BlockAverages(w.Acceleration, size)
	idx, jump := maxDerivative(smoothed)
	biasIndex := idx * size

	if jump > e.params.DerivativeThreshold && biasIndex < len(w.BatteryVoltage) &&
		w.BatteryVoltage[biasIndex] == e.params.LowBatteryVoltage {
		return detected(FaultBias, "Bias detected due to low battery voltage. Please charge the battery!")
	}

	for _, g := range w.Gyroscope {
		if math.Abs(g) <= e.params.GyroThreshold {
			continue
		}
		if len(smoothed) < 2 {
			return detected(FaultBias, "Bias detected due to sudden rotation, but the window is too short to recover")
		}
		offset, err := recovery.CorrectBias(w.Acceleration, smoothed, biasIndex, idx)
		if err != nil {
			e.logger.Warn("bias correction failed", zap.Error(err))
			return detected(FaultBias, "Bias detected due to sudden rotation, but recovery failed")
		}
		e.logger.Info("bias correction applied",
			zap.Int("bias_index", biasIndex),
			zap.Float64("offset", offset),
			zap.Float64("gyro", g),
		)
		return recovered(FaultBias, "Bias detected due to sudden rotation and recovery applied")
	}
	return normal(FaultBias, "No bias detected")
}
