// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package window

import (
	"errors"
	"fmt"
)

var (
	// ErrNilWindow is returned when a diagnosis is requested without a window.
	ErrNilWindow = errors.New("window: nil window")
	// ErrInvalidMetadata is returned for negative sampling metadata.
	ErrInvalidMetadata = errors.New("window: invalid sampling metadata")
)

// Window is one acquisition cycle of the sensing node. Channels are
// independent and may differ in length; Acceleration is the reference
// channel for most checks.
type Window struct {
	BatteryVoltage []float64 `json:"battery_voltage"` // V
	Temperature    []float64 `json:"temperature"`     // °C
	Acceleration   []float64 `json:"acceleration"`    // g
	Gyroscope      []float64 `json:"gyroscope"`       // °/s

	PreviousState string `json:"previous_state,omitempty"` // short tag of the previous cycle

	SamplingFrequency int  `json:"sampling_frequency"` // Hz
	Duration          int  `json:"duration"`           // seconds
	IsActive          bool `json:"is_active"`
}

// ExpectedSamples is the number of acceleration samples a complete window holds.
func (w *Window) ExpectedSamples() int {
	return w.SamplingFrequency * w.Duration
}

// Validate reports malformed windows. Empty channels are not malformed:
// the classifiers define what an empty channel means.
func (w *Window) Validate() error {
	if w == nil {
		return ErrNilWindow
	}
	if w.SamplingFrequency < 0 {
		return fmt.Errorf("%w: sampling_frequency %d", ErrInvalidMetadata, w.SamplingFrequency)
	}
	if w.Duration < 0 {
		return fmt.Errorf("%w: duration %d", ErrInvalidMetadata, w.Duration)
	}
	return nil
}

// Clone returns a deep copy so callers can keep the raw capture while
// recovery rewrites the acceleration channel.
func (w *Window) Clone() *Window {
	c := *w
	c.BatteryVoltage = append([]float64(nil), w.BatteryVoltage...)
	c.Temperature = append([]float64(nil), w.Temperature...)
	c.Acceleration = append([]float64(nil), w.Acceleration...)
	c.Gyroscope = append([]float64(nil), w.Gyroscope...)
	return &c
}
