// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package accelrange models the accelerometer full-scale range register
// and the single-step controller that is allowed to change it.
package accelrange

import (
	"fmt"
	"strings"
	"sync"
)

// Code is the ACCEL_FS_SEL bit pattern as written to ACCEL_CONFIG (0x1C).
type Code byte

const (
	Range2G  Code = 0x00
	Range4G  Code = 0x08
	Range8G  Code = 0x10
	Range16G Code = 0x18
)

// ordered from finest to coarsest resolution
var ladder = []Code{Range2G, Range4G, Range8G, Range16G}

// G returns the full-scale value in g. Unknown codes map to 2g.
func (c Code) G() float64 {
	switch c {
	case Range2G:
		return 2.0
	case Range4G:
		return 4.0
	case Range8G:
		return 8.0
	case Range16G:
		return 16.0
	default:
		return 2.0
	}
}

// Index returns the 0..3 FS_SEL index used by drivers and the config file.
func (c Code) Index() byte {
	return byte(c) >> 3
}

func (c Code) String() string {
	return fmt.Sprintf("±%gg (0x%02X)", c.G(), byte(c))
}

// FromIndex converts a 0..3 FS_SEL index into a Code.
func FromIndex(idx byte) (Code, error) {
	if int(idx) >= len(ladder) {
		return 0, fmt.Errorf("accel range index must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", idx)
	}
	return ladder[idx], nil
}

// ParseCode accepts "2g".."16g" or an index "0".."3".
func ParseCode(s string) (Code, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2g", "0":
		return Range2G, nil
	case "4g", "1":
		return Range4G, nil
	case "8g", "2":
		return Range8G, nil
	case "16g", "3":
		return Range16G, nil
	}
	return 0, fmt.Errorf("unknown accel range %q", s)
}

// State is the process-wide range register. The controller is its only
// writer; everyone else reads it through Current.
type State struct {
	mu   sync.RWMutex
	code Code
}

// NewState returns a register initialised to code.
func NewState(code Code) *State {
	return &State{code: code}
}

// Current returns the active range code.
func (s *State) Current() Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// G returns the g-value of the active range.
func (s *State) G() float64 {
	return s.Current().G()
}
