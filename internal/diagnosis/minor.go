package diagnosis

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// CheckMinor flags a range too coarse to resolve motion: when at least
// MinorFraction of consecutive acceleration deltas are within the noise
// floor, the range is stepped down once.
func (e *Engine) CheckMinor(w *window.Window, m metrics.Metrics) Verdict {
	accel := w.Acceleration
	if len(accel) < 2 {
		return normal(FaultMinor, "No minor issues detected")
	}

	small := 0
	for i := 1; i < len(accel); i++ {
		if math.Abs(accel[i]-accel[i-1]) <= m.ResolutionNoise {
			small++
		}
	}
	fraction := float64(small) / float64(len(accel)-1)
	if fraction < e.params.MinorFraction {
		return normal(FaultMinor, "No minor issues detected")
	}

	step := e.ranges.Decrease()
	if !step.Changed {
		return detected(FaultMinor, "Minor issue detected due to insufficient sensor resolution, but range is already at minimum")
	}
	e.logger.Info("reduced accel range for improved resolution",
		zap.Float64("unresolved_fraction", fraction),
		zap.Stringer("range", step.To),
	)
	return recovered(FaultMinor, fmt.Sprintf(
		"Minor issue detected due to insufficient sensor resolution, range reduced to %gg", step.To.G()))
}
