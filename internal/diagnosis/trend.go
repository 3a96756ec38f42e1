package diagnosis

import (
	"math"

	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/recovery"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// minTempEpsilon is how close to 0 °C the minimum temperature may get
// before the percentage variation is no longer computed.
const minTempEpsilon = 1e-9

// monotonicRun scans consecutive block averages and reports whether
// `need` strictly increasing or strictly decreasing steps occur in a row.
// A flat step resets both counters. The scan stops at the first run found.
func monotonicRun(blocks []float64, need int) bool {
	inc, dec := 0, 0
	for i := 1; i < len(blocks); i++ {
		switch {
		case blocks[i] > blocks[i-1]:
			inc++
			dec = 0
		case blocks[i] < blocks[i-1]:
			dec++
			inc = 0
		default:
			inc, dec = 0, 0
		}
		if inc >= need || dec >= need {
			return true
		}
	}
	return false
}

// CheckTrend looks for a sustained monotonic run in the block-averaged
// acceleration. The run counts as a trend when the temperature span
// exceeds TrendTempPercent of the minimum temperature, or the sensor is
// active; a confirmed trend is removed with TrendRecovery.
func (e *Engine) CheckTrend(w *window.Window, m metrics.Metrics) Verdict {
	blocks := recovery.BlockAverages(w.Acceleration, e.params.WindowSize)
	if !monotonicRun(blocks, e.params.TrendWindows) {
		return normal(FaultTrend, "No trend detected")
	}

	if m.Temperature.Count > 0 && math.Abs(m.Temperature.Min) >= minTempEpsilon {
		pct := m.Temperature.Span() / m.Temperature.Min * 100
		if pct > e.params.TrendTempPercent {
			e.recoverTrend(w, "temperature", zap.Float64("temp_variation_pct", pct))
			return recovered(FaultTrend, "Trend detected due to temperature variation, recovery applied")
		}
	}
	if w.IsActive {
		e.recoverTrend(w, "activation")
		return recovered(FaultTrend, "Trend detected due to sensor activation, recovery applied")
	}
	return normal(FaultTrend, "No trend detected")
}

func (e *Engine) recoverTrend(w *window.Window, cause string, fields ...zap.Field) {
	recovery.TrendRecovery(w.Acceleration, e.params.WindowSize)
	e.logger.Info("trend recovery applied",
		append([]zap.Field{
			zap.String("cause", cause),
			zap.Int("samples", len(w.Acceleration)),
		}, fields...)...,
	)
}
