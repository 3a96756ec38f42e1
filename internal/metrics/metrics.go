package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/node_diagnosis/internal/window"
)

// ADCBits is the resolution of the accelerometer converter.
const ADCBits = 12

// Channel holds the reduction of one sample channel.
type Channel struct {
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Span is Max - Min.
func (c Channel) Span() float64 {
	return c.Max - c.Min
}

// Metrics summarises a window. It is computed fresh per window and not
// modified afterwards.
type Metrics struct {
	Battery      Channel `json:"battery"`
	Temperature  Channel `json:"temperature"`
	Acceleration Channel `json:"acceleration"`
	GyroCount    int     `json:"gyro_count"`

	Range           float64 `json:"range"`            // active full scale in g
	Resolution      float64 `json:"resolution"`       // Range / 2^12
	ResolutionNoise float64 `json:"resolution_noise"` // noise floor for consecutive deltas
}

// Compute reduces w. rangeG is the g-value of the active accelerometer
// range and noiseFloor the tolerance used by the resolution check.
// Empty channels reduce to a zero Channel.
func Compute(w *window.Window, rangeG, noiseFloor float64) Metrics {
	return Metrics{
		Battery:         reduce(w.BatteryVoltage),
		Temperature:     reduce(w.Temperature),
		Acceleration:    reduce(w.Acceleration),
		GyroCount:       len(w.Gyroscope),
		Range:           rangeG,
		Resolution:      rangeG / (1 << ADCBits),
		ResolutionNoise: noiseFloor,
	}
}

func reduce(x []float64) Channel {
	if len(x) == 0 {
		return Channel{}
	}
	return Channel{
		Max:   floats.Max(x),
		Min:   floats.Min(x),
		Avg:   floats.Sum(x) / float64(len(x)),
		Count: len(x),
	}
}
