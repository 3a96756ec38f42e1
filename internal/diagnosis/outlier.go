package diagnosis

import (
	"math"

	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/recovery"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// CheckOutlier attributes outliers to an extreme cold (last temperature at
// or below ColdTemperature), which is recovered with a trend pass followed
// by spike clipping, or to a loose contact (last battery delta above
// ContactVoltageJump), which is reported only.
func (e *Engine) CheckOutlier(w *window.Window, _ metrics.Metrics) Verdict {
	if n := len(w.Temperature); n > 0 && w.Temperature[n-1] <= e.params.ColdTemperature {
		recovery.TrendRecovery(w.Acceleration, e.params.WindowSize)
		clip := recovery.OutlierRecovery(w.Acceleration)
		e.logger.Info("cold outlier recovery applied",
			zap.Float64("temperature", w.Temperature[n-1]),
			zap.Int("clip_start", clip.Start),
			zap.Int("clipped", clip.Replaced),
		)
		return recovered(FaultOutlier, "Outlier due to extreme low temperature, recovery applied.")
	}

	if n := len(w.BatteryVoltage); n >= 2 {
		if math.Abs(w.BatteryVoltage[n-1]-w.BatteryVoltage[n-2]) > e.params.ContactVoltageJump {
			return detected(FaultOutlier, "Outlier due to loose electrical contact (sudden voltage change). Please fix loose contact!")
		}
	}
	return normal(FaultOutlier, "No Outlier detected")
}
