// Package v4l2dev implements the uvc device-access interfaces on top
// of Linux V4L2 device nodes. UVC cameras are matched by USB vendor
// and product ID through sysfs and driven with go4vl.
package v4l2dev

import (
	"fmt"
	"os"

	"github.com/vladimirvivien/go4vl/device"

	"uvc-camd/pkg/uvc"
)

// Backend satisfies uvc.Backend.
type Backend struct{}

func (Backend) Init() (uvc.Context, error) {
	if _, err := os.Stat(sysfsRoot); err != nil {
		return nil, fmt.Errorf("v4l2 subsystem unavailable: %w", err)
	}
	return &captureContext{}, nil
}

type captureContext struct{}

func (c *captureContext) FindDevice(vendorID, productID uint16, serial string) (uvc.Device, error) {
	list, err := enumerate()
	if err != nil {
		return nil, err
	}
	for _, e := range list {
		if e.Vendor != vendorID || e.Product != productID {
			continue
		}
		if serial != "" && e.Serial != serial {
			continue
		}
		return &captureDevice{entry: e}, nil
	}
	return nil, uvc.ErrDeviceNotFound
}

func (c *captureContext) Close() error { return nil }

type captureDevice struct {
	entry entry
}

func (d *captureDevice) Info() uvc.DeviceInfo {
	return uvc.DeviceInfo{
		Bus:     d.entry.Bus,
		Address: d.entry.Address,
		Path:    d.entry.Node,
	}
}

func (d *captureDevice) Open() (uvc.Handle, error) {
	// Probe open with the node's current format; the real format is
	// applied during negotiation.
	dev, err := device.Open(d.entry.Node, device.WithBufferSize(1))
	if err != nil {
		return nil, &uvc.OpenError{Info: d.Info(), Cause: err}
	}
	return &handle{path: d.entry.Node, dev: dev}, nil
}

func (d *captureDevice) Release() {}

// DeviceDesc describes an attached capture device.
type DeviceDesc struct {
	Node    string
	Bus     int
	Address int
	Vendor  uint16
	Product uint16
	Serial  string
}

// Devices lists the attached USB capture devices.
func Devices() ([]DeviceDesc, error) {
	list, err := enumerate()
	if err != nil {
		return nil, err
	}
	descs := make([]DeviceDesc, 0, len(list))
	for _, e := range list {
		descs = append(descs, DeviceDesc{
			Node:    e.Node,
			Bus:     e.Bus,
			Address: e.Address,
			Vendor:  e.Vendor,
			Product: e.Product,
			Serial:  e.Serial,
		})
	}
	return descs, nil
}

// Probe reports the stream modes a device node supports.
func Probe(node string) []uvc.StreamMode {
	h := &handle{path: node}
	return h.Modes()
}
