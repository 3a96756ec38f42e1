package diagnosis

import (
	"errors"
	"fmt"
)

// Params are the tuning constants shared by the classifiers.
type Params struct {
	NoiseTolerance      float64 // max |Δaccel| treated as unresolved, g
	MinorFraction       float64 // share of unresolved deltas that flags a minor fault
	WindowSize          int     // smoothing and block-average width, samples
	GyroThreshold       float64 // rotation rate that marks a sudden rotation, °/s
	SaturationTolerance float64 // band around ±full scale counted as saturated, g
	SaturationLevel     float64 // saturation threshold override, g; 0 uses the range g-value
	SaturationRun       int     // consecutive saturated samples that flag a square fault
	DerivativeThreshold float64 // block-to-block step that counts as a bias jump, g
	LowBatteryVoltage   float64 // battery reading that attributes a bias jump to the battery, V
	ColdTemperature     float64 // last temperature at or below this is an extreme cold, °C
	ContactVoltageJump  float64 // last battery delta above this is a loose contact, V
	DriftStep           float64 // battery delta counted towards drift, V
	DriftCount          int     // counted deltas that flag drift
	TrendWindows        int     // consecutive monotonic block steps that flag a trend
	TrendTempPercent    float64 // temperature span over min temperature that explains a trend, %

	// Used by Missing when the window carries no sampling metadata.
	SamplingRate int // Hz
	Duration     int // seconds
}

// DefaultParams returns the tuning used on the sensing node.
func DefaultParams() Params {
	return Params{
		NoiseTolerance:      0.7,
		MinorFraction:       0.8,
		WindowSize:          10,
		GyroThreshold:       200,
		SaturationTolerance: 0.5,
		SaturationRun:       3,
		DerivativeThreshold: 0.5,
		LowBatteryVoltage:   3.4,
		ColdTemperature:     -20,
		ContactVoltageJump:  0.3,
		DriftStep:           0.1,
		DriftCount:          2,
		TrendWindows:        10,
		TrendTempPercent:    30,
		SamplingRate:        10,
		Duration:            10,
	}
}

// Validate rejects tunings the classifiers cannot run with.
func (p Params) Validate() error {
	var errs []error
	if p.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("window size must be >= 1, got %d", p.WindowSize))
	}
	if p.SaturationRun < 1 {
		errs = append(errs, fmt.Errorf("saturation run must be >= 1, got %d", p.SaturationRun))
	}
	if p.DriftCount < 1 {
		errs = append(errs, fmt.Errorf("drift count must be >= 1, got %d", p.DriftCount))
	}
	if p.TrendWindows < 1 {
		errs = append(errs, fmt.Errorf("trend windows must be >= 1, got %d", p.TrendWindows))
	}
	if p.MinorFraction <= 0 || p.MinorFraction > 1 {
		errs = append(errs, fmt.Errorf("minor fraction must be in (0, 1], got %g", p.MinorFraction))
	}
	if p.NoiseTolerance < 0 || p.SaturationTolerance < 0 || p.SaturationLevel < 0 {
		errs = append(errs, errors.New("tolerances must not be negative"))
	}
	return errors.Join(errs...)
}
