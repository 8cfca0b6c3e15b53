// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package report

import "encoding/binary"

// Parser decodes one raw endpoint report.
type Parser interface {
	Parse(data []byte) Report
}

// Decoder turns a raw buffer into a report variant.
type Decoder func(data []byte) Report

// Table dispatches on a discriminator byte at Offset. Unknown discriminators
// and buffers too short to hold one fall through to Fallback, or to an
// undecoded device report when Fallback is nil.
type Table struct {
	Offset   int
	Entries  map[byte]Decoder
	Fallback Decoder
}

func (t Table) Parse(data []byte) Report {
	if t.Offset < len(data) {
		if dec, ok := t.Entries[data[t.Offset]]; ok {
			return dec(data)
		}
	}
	if t.Fallback != nil {
		return t.Fallback(data)
	}
	return Device(data)
}

// Sub returns a Decoder that dispatches through a nested table, for report
// families keyed on a second byte.
func Sub(t Table) Decoder {
	return t.Parse
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(data []byte) Report

func (f ParserFunc) Parse(data []byte) Report { return f(data) }

// Status bits of byte 1 in the common tablet layout.
const (
	bitButton1 = 0x02
	bitButton2 = 0x04
	bitEraser  = 0x08
	bitInRange = 0x80
)

// DecodeTablet reads the common layout shared by most tablets:
// [0] report id, [1] status bits, [2:4] X, [4:6] Y, [6:8] pressure,
// all little endian.
func DecodeTablet(data []byte) Report {
	if len(data) < 8 {
		return Device(data)
	}
	if data[1]&bitInRange == 0 {
		return Report{Kind: KindOutOfRange, Raw: data}
	}
	return Report{
		Kind: KindTablet,
		Raw:  data,
		Position: Vector2{
			X: float64(binary.LittleEndian.Uint16(data[2:4])),
			Y: float64(binary.LittleEndian.Uint16(data[4:6])),
		},
		Pressure: uint32(binary.LittleEndian.Uint16(data[6:8])),
		PenButtons: []bool{
			data[1]&bitButton1 != 0,
			data[1]&bitButton2 != 0,
		},
		Eraser: data[1]&bitEraser != 0,
	}
}

// DecodeAux reads a bitmask of express keys from byte 1 onward.
func DecodeAux(data []byte) Report {
	if len(data) < 2 {
		return Device(data)
	}
	buttons := make([]bool, 0, 8*(len(data)-1))
	for _, b := range data[1:] {
		for bit := 0; bit < 8; bit++ {
			buttons = append(buttons, b&(1<<bit) != 0)
		}
	}
	return Report{Kind: KindAux, Raw: data, AuxButtons: buttons}
}
