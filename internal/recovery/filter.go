// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recovery holds the numeric passes that repair the acceleration
// channel in place once a fault has been classified.
package recovery

import (
	"gonum.org/v1/gonum/floats"
)

// DefaultWindowSize is the smoothing window used when none is configured.
const DefaultWindowSize = 10

// MovingAverage returns a same-length sequence where element i is the mean
// of data[i-w/2 : i+w/2] inclusive, clamped to the slice bounds. Edge
// windows are therefore shorter and asymmetric.
func MovingAverage(data []float64, windowSize int) []float64 {
	return MovingAverageInto(nil, data, windowSize)
}

// MovingAverageInto is MovingAverage writing into dst, which is grown as
// needed and returned. dst must not alias data.
func MovingAverageInto(dst, data []float64, windowSize int) []float64 {
	n := len(data)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	half := windowSize / 2
	if half < 0 {
		half = 0
	}
	for i := range data {
		start := max(i-half, 0)
		end := min(i+half, n-1)
		dst[i] = floats.Sum(data[start:end+1]) / float64(end-start+1)
	}
	return dst
}

// BlockAverages splits data into consecutive non-overlapping blocks of
// size elements and returns the mean of each. A trailing partial block is
// ignored.
func BlockAverages(data []float64, size int) []float64 {
	if size <= 0 {
		return nil
	}
	blocks := len(data) / size
	out := make([]float64, blocks)
	for b := range out {
		out[b] = floats.Sum(data[b*size:(b+1)*size]) / float64(size)
	}
	return out
}
