package diagnosis

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// saturationThreshold is the +g level a saturated sample sits at.
func (e *Engine) saturationThreshold(m metrics.Metrics) float64 {
	if e.params.SaturationLevel > 0 {
		return e.params.SaturationLevel
	}
	return m.Range
}

// CheckSquare flags saturation: SaturationRun consecutive samples within
// SaturationTolerance of +threshold, or of -threshold, step the range up once.
func (e *Engine) CheckSquare(w *window.Window, m metrics.Metrics) Verdict {
	high := e.saturationThreshold(m)
	low := -high
	tol := e.params.SaturationTolerance

	nearMax, nearMin := 0, 0
	for i, a := range w.Acceleration {
		switch {
		case a >= high-tol && a <= high+tol:
			nearMax++
			nearMin = 0
		case a >= low-tol && a <= low+tol:
			nearMin++
			nearMax = 0
		default:
			nearMax, nearMin = 0, 0
		}
		if nearMax < e.params.SaturationRun && nearMin < e.params.SaturationRun {
			continue
		}

		e.logger.Info("sensor saturation detected",
			zap.Int("index", i),
			zap.Float64("threshold", high),
			zap.Stringer("range", e.ranges.State().Current()),
		)
		step := e.ranges.Increase()
		if !step.Changed {
			return detected(FaultSquare, "Square issue detected due to sensor saturation, but range is already at maximum")
		}
		return recovered(FaultSquare, fmt.Sprintf(
			"Square issue detected due to sensor saturation, range increased by one step to %gg", step.To.G()))
	}
	return normal(FaultSquare, "No Square issues detected")
}
