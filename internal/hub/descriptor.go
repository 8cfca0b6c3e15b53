// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DeviceInfo is what sysfs tells us about a hidraw node.
type DeviceInfo struct {
	Bus       int
	VendorID  int
	ProductID int
	Name      string
	// Phys is the HID_PHYS topology path, e.g. usb-0000:00:14.0-1/input0.
	Phys string
}

// Physical strips the interface suffix from Phys so that every interface
// of one USB device yields the same value.
func (i DeviceInfo) Physical() string {
	if base, _, ok := strings.Cut(i.Phys, "/input"); ok {
		return base
	}
	return i.Phys
}

// ParseUevent reads the HID_ID, HID_NAME and HID_PHYS keys of a hid device uevent
// file. HID_ID has the form BUS:VENDOR:PRODUCT in hex.
func ParseUevent(data []byte) (DeviceInfo, error) {
	var info DeviceInfo
	found := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "HID_ID":
			parts := strings.Split(value, ":")
			if len(parts) != 3 {
				return info, fmt.Errorf("malformed HID_ID %q", value)
			}
			ids := make([]int, 3)
			for i, p := range parts {
				n, err := strconv.ParseUint(p, 16, 32)
				if err != nil {
					return info, fmt.Errorf("malformed HID_ID %q: %w", value, err)
				}
				ids[i] = int(n)
			}
			info.Bus, info.VendorID, info.ProductID = ids[0], ids[1], ids[2]
			found = true
		case "HID_NAME":
			info.Name = value
		case "HID_PHYS":
			info.Phys = value
		}
	}
	if !found {
		return info, fmt.Errorf("uevent has no HID_ID")
	}
	return info, nil
}

// HID short item types and tags used to size input reports.
const (
	itemMain   = 0
	itemGlobal = 1

	tagInput       = 0x8
	tagReportSize  = 0x7
	tagReportID    = 0x8
	tagReportCount = 0x9
	tagPush        = 0xA
	tagPop         = 0xB
)

type globals struct {
	size, count, id uint32
}

// InputReportLength computes the longest input report, in bytes, declared
// by a HID report descriptor. Numbered reports include their id byte.
func InputReportLength(desc []byte) int {
	var (
		g     globals
		stack []globals
		bits  = map[uint32]uint32{}
	)

	for i := 0; i < len(desc); {
		prefix := desc[i]
		if prefix == 0xFE {
			if i+1 >= len(desc) {
				break
			}
			i += 3 + int(desc[i+1])
			continue
		}

		size := int(prefix & 0x03)
		if size == 3 {
			size = 4
		}
		if i+1+size > len(desc) {
			break
		}
		var value uint32
		for b := 0; b < size; b++ {
			value |= uint32(desc[i+1+b]) << (8 * b)
		}
		kind := (prefix >> 2) & 0x03
		tag := prefix >> 4

		switch {
		case kind == itemGlobal && tag == tagReportSize:
			g.size = value
		case kind == itemGlobal && tag == tagReportCount:
			g.count = value
		case kind == itemGlobal && tag == tagReportID:
			g.id = value
		case kind == itemGlobal && tag == tagPush:
			stack = append(stack, g)
		case kind == itemGlobal && tag == tagPop && len(stack) > 0:
			g = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		case kind == itemMain && tag == tagInput:
			bits[g.id] += g.size * g.count
		}
		i += 1 + size
	}

	longest := 0
	for id, n := range bits {
		length := int((n + 7) / 8)
		if id != 0 {
			length++
		}
		longest = max(longest, length)
	}
	return longest
}
