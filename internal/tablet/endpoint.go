// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package tablet

import "fmt"

// Endpoint is a hardware interface producing raw report bytes. Endpoints
// are owned by a device hub; input devices only reference them.
type Endpoint interface {
	VendorID() int
	ProductID() int
	Path() string
	InputReportLength() int
	// DeviceString reads a USB string descriptor by index.
	DeviceString(index byte) (string, error)
	// Subscribe registers fn for every raw report and returns a cancel func.
	Subscribe(fn func(data []byte)) (cancel func())
	// RawClone reports whether raw reports are forwarded for debugging.
	RawClone() bool
	SetRawClone(enabled bool)
}

// PhysicalEndpoint is implemented by endpoints that know which physical
// device they belong to. Interfaces of one USB tablet share an ID.
type PhysicalEndpoint interface {
	PhysicalID() string
}

// PhysicalID returns the physical device ep belongs to. Endpoints that do
// not report one stand for a device of their own.
func PhysicalID(ep Endpoint) string {
	if p, ok := ep.(PhysicalEndpoint); ok {
		if id := p.PhysicalID(); id != "" {
			return id
		}
	}
	return ep.Path()
}

// EndpointInfo is the serializable view of an endpoint.
type EndpointInfo struct {
	VendorID          int    `json:"vendorId"`
	ProductID         int    `json:"productId"`
	Path              string `json:"path"`
	InputReportLength int    `json:"inputReportLength"`
}

// Describe snapshots ep.
func Describe(ep Endpoint) EndpointInfo {
	return EndpointInfo{
		VendorID:          ep.VendorID(),
		ProductID:         ep.ProductID(),
		Path:              ep.Path(),
		InputReportLength: ep.InputReportLength(),
	}
}

func (i EndpointInfo) String() string {
	return fmt.Sprintf("%04X:%04X %s", i.VendorID, i.ProductID, i.Path)
}
