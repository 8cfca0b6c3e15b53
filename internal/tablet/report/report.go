// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package report defines decoded tablet reports and the table-driven
// parsers that produce them from raw endpoint bytes.
package report

import "fmt"

// Kind tags the variant carried by a Report.
type Kind uint8

const (
	// KindDevice is an undecoded report; only Raw is meaningful.
	KindDevice Kind = iota
	// KindTablet carries pen position, pressure and pen buttons.
	KindTablet
	// KindAux carries express-key state.
	KindAux
	// KindMouse carries puck position and mouse buttons.
	KindMouse
	// KindOutOfRange signals the tool left the detection range.
	KindOutOfRange
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindTablet:
		return "tablet"
	case KindAux:
		return "aux"
	case KindMouse:
		return "mouse"
	case KindOutOfRange:
		return "out-of-range"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Vector2 is a position in device or output units.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Report is one decoded input sample. Fields outside the variant selected by
// Kind are zero.
type Report struct {
	Kind       Kind    `json:"kind"`
	Raw        []byte  `json:"raw"`
	Position   Vector2 `json:"position"`
	Pressure   uint32  `json:"pressure"`
	PenButtons []bool  `json:"penButtons,omitempty"`
	AuxButtons []bool  `json:"auxButtons,omitempty"`
	Eraser     bool    `json:"eraser,omitempty"`
}

// Device wraps raw bytes in an undecoded report.
func Device(data []byte) Report {
	return Report{Kind: KindDevice, Raw: data}
}

// Clone returns a deep copy, used when forwarding debug reports.
func (r Report) Clone() Report {
	out := r
	out.Raw = append([]byte(nil), r.Raw...)
	if r.PenButtons != nil {
		out.PenButtons = append([]bool(nil), r.PenButtons...)
	}
	if r.AuxButtons != nil {
		out.AuxButtons = append([]bool(nil), r.AuxButtons...)
	}
	return out
}
