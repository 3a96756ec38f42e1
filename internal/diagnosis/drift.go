package diagnosis

import (
	"math"

	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// CheckDrift counts consecutive battery deltas of at least DriftStep and
// reports drift once DriftCount of them are seen. Report only.
func (e *Engine) CheckDrift(w *window.Window, _ metrics.Metrics) Verdict {
	count := 0
	for i := 1; i < len(w.BatteryVoltage); i++ {
		if math.Abs(w.BatteryVoltage[i]-w.BatteryVoltage[i-1]) >= e.params.DriftStep {
			count++
		}
		if count >= e.params.DriftCount {
			return detected(FaultDrift, "Drift detected due to multiple voltage variations. Please check the battery!")
		}
	}
	return normal(FaultDrift, "No Drift detected")
}
