// Package uvc is the device-access layer for USB Video Class cameras:
// discovery, stream negotiation, asynchronous frame and status-event
// delivery, and control I/O. The camera driver consumes the interfaces
// declared here; v4l2dev implements them on Linux.
package uvc

import "fmt"

type FrameFormat int

const (
	FormatUnknown FrameFormat = iota
	FormatUncompressed
	FormatCompressed
	FormatYUYV
	FormatUYVY
	FormatRGB
	FormatBGR
	FormatMJPEG
	FormatGray8
)

func (f FrameFormat) String() string {
	switch f {
	case FormatUncompressed:
		return "uncompressed"
	case FormatCompressed:
		return "compressed"
	case FormatYUYV:
		return "yuyv"
	case FormatUYVY:
		return "uyvy"
	case FormatRGB:
		return "rgb"
	case FormatBGR:
		return "bgr"
	case FormatMJPEG:
		return "mjpeg"
	case FormatGray8:
		return "gray8"
	}
	return "unknown"
}

// ParseFormat maps a video_mode string to a frame format. Unknown
// modes fall back to uncompressed; ok reports whether the mode was
// recognized so the caller can log the fallback.
func ParseFormat(mode string) (f FrameFormat, ok bool) {
	switch mode {
	case "uncompressed":
		return FormatUncompressed, true
	case "compressed":
		return FormatCompressed, true
	case "yuyv":
		return FormatYUYV, true
	case "uyvy":
		return FormatUYVY, true
	case "rgb":
		return FormatRGB, true
	case "bgr":
		return FormatBGR, true
	case "mjpeg":
		return FormatMJPEG, true
	case "gray8":
		return FormatGray8, true
	}
	return FormatUncompressed, false
}

// Frame is one captured frame. It is owned by the backend for the
// duration of a single callback invocation; callers must copy Data
// before returning.
type Frame struct {
	Format FrameFormat
	Width  int
	Height int
	Data   []byte
}

// StreamRequest is a desired streaming mode.
type StreamRequest struct {
	Format FrameFormat
	Width  int
	Height int
	FPS    int
}

func (r StreamRequest) String() string {
	return fmt.Sprintf("%s %dx%d@%d", r.Format, r.Width, r.Height, r.FPS)
}

// StreamParams is a negotiated streaming mode, required to start
// streaming. It is only valid for the handle that produced it.
type StreamParams struct {
	Format FrameFormat
	Width  int
	Height int
	FPS    int
}

// StreamMode describes one mode a device supports. Returned by
// Handle.Modes as a diagnostic hint after failed negotiation.
type StreamMode struct {
	Format    FrameFormat
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

func (m StreamMode) String() string {
	return fmt.Sprintf("%s %dx%d..%dx%d", m.Format, m.MinWidth, m.MinHeight, m.MaxWidth, m.MaxHeight)
}

// ControlID selects a device control.
type ControlID uint32

const (
	CtrlScanningMode ControlID = iota
	CtrlAEMode
	CtrlAEPriority
	CtrlExposureAbs
	CtrlFocusAuto
	CtrlFocusAbs
	CtrlGain
	CtrlIrisAbs
	CtrlBrightness
)

// StatusClass identifies the originating unit of a status event.
type StatusClass int

const (
	StatusClassControlCamera StatusClass = iota + 1
	StatusClassControlProcessing
)

// StatusAttribute identifies what changed about the control.
type StatusAttribute int

const (
	StatusAttrValueChange StatusAttribute = iota
	StatusAttrInfoChange
	StatusAttrFailureChange
)

// Control selectors reported in status events.
const (
	SelectorExposureTimeAbsolute    = 0x04
	SelectorWhiteBalanceTemperature = 0x0a
)

// StatusEvent is an asynchronous device notification, typically an
// auto-adjusted control changing value without an explicit request.
// Data holds the raw little-endian control payload.
type StatusEvent struct {
	Class     StatusClass
	Event     int
	Selector  int
	Attribute StatusAttribute
	Data      []byte
}

// DeviceInfo locates a device for diagnostics.
type DeviceInfo struct {
	Bus     int
	Address int
	Path    string
}

// FrameCallback receives frames on a backend-owned goroutine. The
// frame is only valid until the callback returns.
type FrameCallback func(*Frame)

// StatusCallback receives status events on a backend-owned goroutine.
type StatusCallback func(StatusEvent)

// Backend creates the process-wide capture context.
type Backend interface {
	Init() (Context, error)
}

// Context is the root of the capture subsystem; it owns enumeration.
type Context interface {
	// FindDevice locates a device by vendor and product ID, with an
	// optional exact serial match. Returns ErrDeviceNotFound when no
	// attached device matches.
	FindDevice(vendorID, productID uint16, serial string) (Device, error)
	Close() error
}

// Device is a located but not yet opened device.
type Device interface {
	Info() DeviceInfo
	Open() (Handle, error)
	// Release drops the reference obtained from FindDevice. It must be
	// called exactly once, after any handle has been closed.
	Release()
}

// Handle is an open device. All methods return immediately or with an
// error; none retries internally.
type Handle interface {
	// SetStatusCallback must be called before StartStreaming.
	SetStatusCallback(cb StatusCallback)
	Negotiate(req StreamRequest) (*StreamParams, error)
	// StartStreaming begins asynchronous frame delivery. After
	// StopStreaming returns no further callbacks fire.
	StartStreaming(params *StreamParams, cb FrameCallback) error
	StopStreaming() error
	SetControl(id ControlID, value int32) error
	// SetPanTilt pushes pan and tilt in a single hardware call.
	SetPanTilt(pan, tilt int32) error
	Modes() []StreamMode
	Close() error
}
