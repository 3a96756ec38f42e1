// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package accelrange

import (
	"go.uber.org/zap"
)

// Step describes the outcome of one range transition.
type Step struct {
	From    Code
	To      Code
	Changed bool
}

// Controller performs single-step transitions on a State.
type Controller struct {
	state  *State
	logger *zap.Logger
}

// NewController wraps state. A nil logger is replaced by a no-op logger.
func NewController(state *State, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{state: state, logger: logger}
}

// State returns the register this controller writes.
func (c *Controller) State() *State {
	return c.state
}

// Increase moves one step towards 16g. At 16g (or on an unknown code) it
// leaves the register untouched and reports Changed=false.
func (c *Controller) Increase() Step {
	return c.step(+1)
}

// Decrease moves one step towards 2g. At 2g (or on an unknown code) it
// leaves the register untouched and reports Changed=false.
func (c *Controller) Decrease() Step {
	return c.step(-1)
}

func (c *Controller) step(dir int) Step {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	from := c.state.code
	pos := position(from)
	next := pos + dir
	if pos < 0 || next < 0 || next >= len(ladder) {
		if dir > 0 {
			c.logger.Info("accel range already at maximum", zap.Stringer("range", from))
		} else {
			c.logger.Info("accel range already at minimum", zap.Stringer("range", from))
		}
		return Step{From: from, To: from}
	}

	to := ladder[next]
	c.state.code = to
	c.logger.Info("accel range stepped",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Float64("g", to.G()),
	)
	return Step{From: from, To: to, Changed: true}
}

func position(c Code) int {
	for i, l := range ladder {
		if l == c {
			return i
		}
	}
	return -1
}
