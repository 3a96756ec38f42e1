// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package diagnosis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownFault is returned by ParseFault for names and codes it does not know.
var ErrUnknownFault = errors.New("diagnosis: unknown fault")

// Fault selects a classifier. The numeric values 0..6 are the operator
// selection codes; Bias has no selection code and is reached by name.
type Fault int

const (
	FaultNormal Fault = iota
	FaultMissing
	FaultMinor
	FaultOutlier
	FaultSquare
	FaultTrend
	FaultDrift
	FaultBias
)

var faultNames = map[Fault]string{
	FaultNormal:  "Normal",
	FaultMissing: "Missing",
	FaultMinor:   "Minor",
	FaultOutlier: "Outlier",
	FaultSquare:  "Square",
	FaultTrend:   "Trend",
	FaultDrift:   "Drift",
	FaultBias:    "Bias",
}

func (f Fault) String() string {
	if n, ok := faultNames[f]; ok {
		return n
	}
	return "Fault(" + strconv.Itoa(int(f)) + ")"
}

// MarshalText encodes the fault by lowercase name. Faults without a name,
// as carried by invalid-choice verdicts, encode as their number.
func (f Fault) MarshalText() ([]byte, error) {
	if _, ok := faultNames[f]; !ok {
		return []byte(strconv.Itoa(int(f))), nil
	}
	return []byte(strings.ToLower(f.String())), nil
}

// UnmarshalText accepts anything ParseFault accepts.
func (f *Fault) UnmarshalText(b []byte) error {
	parsed, err := ParseFault(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FaultFromCode maps an operator selection code (0..6) to its fault.
func FaultFromCode(code int) (Fault, bool) {
	if code < int(FaultNormal) || code > int(FaultDrift) {
		return 0, false
	}
	return Fault(code), true
}

// ParseFault accepts a selection code ("0".."6") or a fault name,
// case-insensitive ("drift", "Bias", ...).
func ParseFault(s string) (Fault, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		if f, ok := FaultFromCode(code); ok {
			return f, nil
		}
		return 0, fmt.Errorf("%w: code %d", ErrUnknownFault, code)
	}
	for f, name := range faultNames {
		if strings.EqualFold(name, s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFault, s)
}

// Kind is the outcome class of a verdict.
type Kind int

const (
	KindNormal Kind = iota
	KindRecovered
	KindDetected
	KindHardFailure
	KindInvalid
)

var kindNames = []string{"normal", "recovered", "detected", "hard_failure", "invalid"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("diagnosis: unknown kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("diagnosis: unknown kind %q", string(b))
}

// Verdict is the outcome of one classifier run.
type Verdict struct {
	Fault   Fault  `json:"fault"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Faulty reports whether the classifier found its fault.
func (v Verdict) Faulty() bool {
	return v.Kind == KindRecovered || v.Kind == KindDetected || v.Kind == KindHardFailure
}

// String renders the verdict as a console line, e.g. "Drift: No Drift detected".
func (v Verdict) String() string {
	if v.Kind == KindInvalid {
		return v.Message
	}
	return v.Fault.String() + ": " + v.Message
}

func normal(f Fault, msg string) Verdict {
	return Verdict{Fault: f, Kind: KindNormal, Message: msg}
}

func recovered(f Fault, msg string) Verdict {
	return Verdict{Fault: f, Kind: KindRecovered, Message: msg}
}

func detected(f Fault, msg string) Verdict {
	return Verdict{Fault: f, Kind: KindDetected, Message: msg}
}

func hardFailure(f Fault, msg string) Verdict {
	return Verdict{Fault: f, Kind: KindHardFailure, Message: msg}
}
