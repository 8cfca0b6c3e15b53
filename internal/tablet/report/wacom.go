// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package report

import "encoding/binary"

// Intuos3 returns the dispatch table for Wacom Intuos3 family endpoints.
// Report 0x02 carries a tool sub-id in byte 1.
func Intuos3() Table {
	return Table{
		Offset: 0,
		Entries: map[byte]Decoder{
			0x02: Sub(Table{
				Offset: 1,
				Entries: map[byte]Decoder{
					0xE0: decodeIntuosTablet,
					0xF0: decodeIntuosMouse,
				},
			}),
			0x10: decodeIntuosTablet,
			0x03: decodeIntuosAux,
			0x0C: decodeIntuos3Aux,
		},
	}
}

// Intuos tablet layout: [2:4] X and [4:6] Y big endian with one extra low
// bit each in byte 9, pressure split across bytes 6 and 7.
func decodeIntuosTablet(data []byte) Report {
	if len(data) < 10 {
		return Device(data)
	}
	x := uint32(binary.BigEndian.Uint16(data[2:4]))<<1 | uint32(data[9]>>1)&1
	y := uint32(binary.BigEndian.Uint16(data[4:6]))<<1 | uint32(data[9])&1
	pressure := uint32(data[6])<<3 | uint32(data[7]&0xC0)>>5 | uint32(data[1]&1)
	return Report{
		Kind:     KindTablet,
		Raw:      data,
		Position: Vector2{X: float64(x), Y: float64(y)},
		Pressure: pressure,
		PenButtons: []bool{
			data[1]&0x02 != 0,
			data[1]&0x04 != 0,
		},
	}
}

func decodeIntuosMouse(data []byte) Report {
	if len(data) < 9 {
		return Device(data)
	}
	return Report{
		Kind: KindMouse,
		Raw:  data,
		Position: Vector2{
			X: float64(binary.BigEndian.Uint16(data[2:4])),
			Y: float64(binary.BigEndian.Uint16(data[4:6])),
		},
		PenButtons: []bool{
			data[8]&0x01 != 0,
			data[8]&0x02 != 0,
			data[8]&0x04 != 0,
		},
	}
}

func decodeIntuosAux(data []byte) Report {
	if len(data) < 3 {
		return Device(data)
	}
	r := DecodeAux(data[:3])
	r.Raw = data
	return r
}

func decodeIntuos3Aux(data []byte) Report {
	if len(data) < 7 {
		return Device(data)
	}
	buttons := make([]bool, 8)
	for i := 0; i < 4; i++ {
		buttons[i] = data[5]&(1<<i) != 0
		buttons[i+4] = data[6]&(1<<i) != 0
	}
	return Report{Kind: KindAux, Raw: data, AuxButtons: buttons}
}
