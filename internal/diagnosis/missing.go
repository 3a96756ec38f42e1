package diagnosis

import (
	"fmt"

	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// expectedSamples prefers the window's own sampling metadata and falls
// back to the configured rate and duration.
func (e *Engine) expectedSamples(w *window.Window) int {
	if w.SamplingFrequency > 0 || w.Duration > 0 {
		return w.ExpectedSamples()
	}
	return e.params.SamplingRate * e.params.Duration
}

// CheckMissing compares the acceleration sample count with the expected
// count. No samples, or samples that are all identical, are hard failures.
func (e *Engine) CheckMissing(w *window.Window, _ metrics.Metrics) Verdict {
	accel := w.Acceleration
	if len(accel) == 0 {
		return hardFailure(FaultMissing, msgNoData)
	}
	if allSame(accel) {
		return hardFailure(FaultMissing, "Hard failure detected due to all data points having the same value")
	}

	expected := e.expectedSamples(w)
	switch {
	case len(accel) < expected:
		return detected(FaultMissing, fmt.Sprintf(
			"Missing data detected due to insufficient sample points (%d of %d)", len(accel), expected))
	case len(accel) == expected:
		return normal(FaultMissing, "No missing data detected")
	default:
		return normal(FaultMissing, fmt.Sprintf(
			"No missing data detected (%d samples, more than the %d expected)", len(accel), expected))
	}
}

func allSame(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
