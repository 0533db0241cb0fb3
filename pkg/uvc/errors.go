package uvc

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrDeviceNotFound        = errors.New("uvc: device not found")
	ErrUnsupportedConversion = errors.New("uvc: no conversion for frame format")
	ErrShortFrame            = errors.New("uvc: frame payload shorter than expected")
)

// OpenError reports a failure to open a located device.
type OpenError struct {
	Info  DeviceInfo
	Cause error
}

func (e *OpenError) Error() string {
	if errors.Is(e.Cause, os.ErrPermission) {
		return fmt.Sprintf("uvc: permission denied opening device %d on bus %d, check udev rules", e.Info.Address, e.Info.Bus)
	}
	return fmt.Sprintf("uvc: open device %d on bus %d: %s", e.Info.Address, e.Info.Bus, e.Cause)
}

func (e *OpenError) Unwrap() error { return e.Cause }

// NegotiationError reports that the device cannot satisfy a requested
// format, resolution and frame-rate combination.
type NegotiationError struct {
	Req   StreamRequest
	Cause error
}

func (e *NegotiationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("uvc: negotiate %s: %s", e.Req, e.Cause)
	}
	return fmt.Sprintf("uvc: device does not support %s", e.Req)
}

func (e *NegotiationError) Unwrap() error { return e.Cause }
