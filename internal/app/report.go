package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
)

// RangeInfo describes an accelerometer range on the wire.
type RangeInfo struct {
	Code  string  `json:"code"`  // ACCEL_CONFIG bit pattern, e.g. "0x08"
	Index byte    `json:"index"` // FS_SEL, 0..3
	G     float64 `json:"g"`
}

func rangeInfo(c accelrange.Code) RangeInfo {
	return RangeInfo{Code: fmt.Sprintf("0x%02X", byte(c)), Index: c.Index(), G: c.G()}
}

// Report is published for every diagnosed window.
type Report struct {
	ID          string          `json:"id"`
	Time        time.Time       `json:"time"`
	Fault       diagnosis.Fault `json:"fault"`
	Kind        diagnosis.Kind  `json:"kind"`
	Message     string          `json:"message"`
	RangeBefore RangeInfo       `json:"range_before"`
	RangeAfter  RangeInfo       `json:"range_after"`

	// Acceleration is the repaired channel, set when a recovery pass
	// rewrote it.
	Acceleration []float64 `json:"acceleration,omitempty"`

	// Warnings lists collaborator failures (register write, publish)
	// that did not prevent the verdict.
	Warnings []string `json:"warnings,omitempty"`
}

// Verdict returns the classifier outcome carried by r.
func (r Report) Verdict() diagnosis.Verdict {
	return diagnosis.Verdict{Fault: r.Fault, Kind: r.Kind, Message: r.Message}
}

// rewritesAcceleration reports whether a recovered verdict for f means the
// acceleration channel was repaired in place.
func rewritesAcceleration(v diagnosis.Verdict) bool {
	if v.Kind != diagnosis.KindRecovered {
		return false
	}
	switch v.Fault {
	case diagnosis.FaultTrend, diagnosis.FaultOutlier, diagnosis.FaultBias:
		return true
	}
	return false
}
