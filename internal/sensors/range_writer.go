// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors drives the accelerometer range register.
package sensors

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
)

// RangeWriter applies an accelerometer range to the sensor before the next
// window is captured.
type RangeWriter interface {
	ApplyAccelRange(code accelrange.Code) error
}

// accelSetter is the part of *mpu9250.MPU9250 the writer uses.
type accelSetter interface {
	SetAccelRange(rangeVal byte) error
}

// MPU9250RangeWriter writes ACCEL_FS_SEL on an MPU9250 over SPI.
type MPU9250RangeWriter struct {
	mu      sync.Mutex
	dev     accelSetter
	logger  *zap.Logger
	applied accelrange.Code
	written bool
}

// NewMPU9250RangeWriter initializes the MPU9250 on spiDev with chip select
// csPin and returns a writer for its accelerometer range.
func NewMPU9250RangeWriter(spiDev, csPin string, logger *zap.Logger) (*MPU9250RangeWriter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	return newRangeWriter(imu, logger), nil
}

func newRangeWriter(dev accelSetter, logger *zap.Logger) *MPU9250RangeWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MPU9250RangeWriter{dev: dev, logger: logger.Named("imu")}
}

// ApplyAccelRange writes code to the device. Writing the range that is
// already applied is skipped.
func (w *MPU9250RangeWriter) ApplyAccelRange(code accelrange.Code) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written && w.applied == code {
		return nil
	}
	if err := w.dev.SetAccelRange(code.Index()); err != nil {
		return fmt.Errorf("IMU: set accel range %s: %w", code, err)
	}
	w.applied, w.written = code, true
	w.logger.Info("accelerometer range set",
		zap.Stringer("range", code),
		zap.Uint8("fs_sel", code.Index()),
	)
	return nil
}

// NopRangeWriter accepts every range without touching hardware. It is used
// when no IMU is configured.
type NopRangeWriter struct{}

func (NopRangeWriter) ApplyAccelRange(accelrange.Code) error { return nil }
