// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package diagnosis classifies fault modes of one sensor window and, for
// the recoverable ones, repairs the acceleration channel or steps the
// accelerometer range.
//
// An empty acceleration channel is a hard failure for every fault. An
// all-identical channel is a hard failure only for the Missing check; the
// other classifiers evaluate it like any other signal.
//
// An Engine is not safe for concurrent diagnoses: classifiers mutate the
// caller's window and the shared range register, so one window is
// diagnosed at a time.
package diagnosis

import (
	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/metrics"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

const (
	msgNoData       = "Hard failure detected due to no data collection"
	msgInvalid      = "Invalid choice."
	msgNoDiagnostic = "No diagnostics needed."
)

// Engine runs the classifiers against a shared range controller.
type Engine struct {
	params Params
	ranges *accelrange.Controller
	logger *zap.Logger
}

// NewEngine builds an engine. A nil logger is replaced by a no-op logger.
func NewEngine(params Params, ranges *accelrange.Controller, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{params: params, ranges: ranges, logger: logger}
}

// Params returns the tuning the engine was built with.
func (e *Engine) Params() Params {
	return e.params
}

// Range returns the active accelerometer range.
func (e *Engine) Range() accelrange.Code {
	return e.ranges.State().Current()
}

// Metrics reduces w against the active range.
func (e *Engine) Metrics(w *window.Window) metrics.Metrics {
	return metrics.Compute(w, e.ranges.State().G(), e.params.NoiseTolerance)
}

// Dispatch runs the classifier for an operator selection code (0..6).
// Unknown codes yield an invalid verdict, not an error.
func (e *Engine) Dispatch(w *window.Window, code int) (Verdict, error) {
	f, ok := FaultFromCode(code)
	if !ok {
		if err := w.Validate(); err != nil {
			return Verdict{}, err
		}
		return Verdict{Fault: Fault(code), Kind: KindInvalid, Message: msgInvalid}, nil
	}
	return e.Diagnose(w, f)
}

// Diagnose computes metrics for w and runs the classifier for f. Only a
// malformed window returns an error; every fault condition is a Verdict.
// The acceleration channel of w may be rewritten in place.
func (e *Engine) Diagnose(w *window.Window, f Fault) (Verdict, error) {
	if err := w.Validate(); err != nil {
		return Verdict{}, err
	}
	if f == FaultNormal {
		return normal(FaultNormal, msgNoDiagnostic), nil
	}
	if _, ok := faultNames[f]; !ok {
		return Verdict{Fault: f, Kind: KindInvalid, Message: msgInvalid}, nil
	}
	if len(w.Acceleration) == 0 {
		v := hardFailure(f, msgNoData)
		e.log(v)
		return v, nil
	}

	m := e.Metrics(w)
	var v Verdict
	switch f {
	case FaultMissing:
		v = e.CheckMissing(w, m)
	case FaultMinor:
		v = e.CheckMinor(w, m)
	case FaultOutlier:
		v = e.CheckOutlier(w, m)
	case FaultSquare:
		v = e.CheckSquare(w, m)
	case FaultTrend:
		v = e.CheckTrend(w, m)
	case FaultDrift:
		v = e.CheckDrift(w, m)
	case FaultBias:
		v = e.CheckBias(w, m)
	}
	e.log(v)
	return v, nil
}

func (e *Engine) log(v Verdict) {
	e.logger.Debug("diagnosis verdict",
		zap.Stringer("fault", v.Fault),
		zap.Stringer("kind", v.Kind),
		zap.String("message", v.Message),
	)
}
