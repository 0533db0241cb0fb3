package camera

import (
	"fmt"
	"strconv"

	"uvc-camd/pkg/uvc"
)

// Config is the flat record of everything the daemon can be asked to
// apply to the camera: the identity and stream mode used to open the
// device, and the live-settable controls pushed while streaming. The
// driver keeps exactly one last-applied copy.
//
// WhiteBalanceTemperature is reported by status events only; it is
// never pushed to hardware.
type Config struct {
	Vendor  string `json:"vendor"`
	Product string `json:"product"`
	Serial  string `json:"serial"`
	// Index is a reserved enumeration-index criterion. It is carried
	// through but not used for device lookup.
	Index int `json:"index"`

	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate int    `json:"frame_rate"`
	VideoMode string `json:"video_mode"`

	FrameID       string `json:"frame_id"`
	CameraInfoURL string `json:"camera_info_url"`

	ScanningMode         int32   `json:"scanning_mode"`
	AutoExposure         int32   `json:"auto_exposure"`
	AutoExposurePriority int32   `json:"auto_exposure_priority"`
	ExposureAbsolute     float64 `json:"exposure_absolute"`
	AutoFocus            bool    `json:"auto_focus"`
	FocusAbsolute        int32   `json:"focus_absolute"`
	Gain                 int32   `json:"gain"`
	IrisAbsolute         int32   `json:"iris_absolute"`
	Brightness           int32   `json:"brightness"`
	PanAbsolute          int32   `json:"pan_absolute"`
	TiltAbsolute         int32   `json:"tilt_absolute"`

	WhiteBalanceTemperature int32 `json:"white_balance_temperature"`
}

// DeviceIdentity locates a device. It is derived from a Config at open
// time and not retained.
type DeviceIdentity struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
	Index     int
}

func (c Config) identity() (DeviceIdentity, error) {
	vendor, err := parseID(c.Vendor)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("vendor %q: %w", c.Vendor, err)
	}
	product, err := parseID(c.Product)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("product %q: %w", c.Product, err)
	}
	return DeviceIdentity{
		VendorID:  vendor,
		ProductID: product,
		Serial:    c.Serial,
		Index:     c.Index,
	}, nil
}

// parseID accepts decimal or 0x-prefixed hexadecimal.
func parseID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func (c Config) streamRequest() (uvc.StreamRequest, bool) {
	format, known := uvc.ParseFormat(c.VideoMode)
	return uvc.StreamRequest{
		Format: format,
		Width:  c.Width,
		Height: c.Height,
		FPS:    c.FrameRate,
	}, known
}

// structuralChange reports whether applying next requires closing and
// reopening the device.
func structuralChange(cur, next Config) bool {
	return cur.Vendor != next.Vendor ||
		cur.Product != next.Product ||
		cur.Serial != next.Serial ||
		cur.Index != next.Index ||
		cur.Width != next.Width ||
		cur.Height != next.Height ||
		cur.FrameRate != next.FrameRate ||
		cur.VideoMode != next.VideoMode
}
