package v4l2dev

import (
	"fmt"

	"github.com/vladimirvivien/go4vl/v4l2"

	"uvc-camd/pkg/uvc"
)

// V4L2 control IDs (videodev2.h). Listed numerically the way the
// camera class and user class lay them out.
const (
	cidBrightness       = 0x00980900
	cidGain             = 0x00980913
	cidWhiteBalanceTemp = 0x0098091a

	cidExposureAuto         = 0x009a0901
	cidExposureAbsolute     = 0x009a0902
	cidExposureAutoPriority = 0x009a0903
	cidPanAbsolute          = 0x009a0908
	cidTiltAbsolute         = 0x009a0909
	cidFocusAbsolute        = 0x009a090a
	cidFocusAuto            = 0x009a090c
	cidIrisAbsolute         = 0x009a0911
)

// v4l2ControlID maps the uvc control selectors to V4L2 IDs. Scanning
// mode has no V4L2 counterpart and is intentionally absent; pushing it
// reports the control as rejected.
var v4l2ControlID = map[uvc.ControlID]uint32{
	uvc.CtrlAEMode:      cidExposureAuto,
	uvc.CtrlAEPriority:  cidExposureAutoPriority,
	uvc.CtrlExposureAbs: cidExposureAbsolute,
	uvc.CtrlFocusAuto:   cidFocusAuto,
	uvc.CtrlFocusAbs:    cidFocusAbsolute,
	uvc.CtrlGain:        cidGain,
	uvc.CtrlIrisAbs:     cidIrisAbsolute,
	uvc.CtrlBrightness:  cidBrightness,
}

// fcc packs a fourcc code the way videodev2.h does.
func fcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	pixFmtUYVY  = fcc('U', 'Y', 'V', 'Y')
	pixFmtBGR24 = fcc('B', 'G', 'R', '3')
	pixFmtGray8 = fcc('G', 'R', 'E', 'Y')
)

// pixelFormatFor maps a requested frame format to the V4L2 fourcc and
// the concrete format frames will arrive in. The generic uncompressed
// and compressed requests resolve to YUYV and MJPEG respectively,
// which is what UVC cameras universally provide.
func pixelFormatFor(f uvc.FrameFormat) (fourcc uint32, actual uvc.FrameFormat, err error) {
	switch f {
	case uvc.FormatUncompressed, uvc.FormatYUYV:
		return uint32(v4l2.PixelFmtYUYV), uvc.FormatYUYV, nil
	case uvc.FormatCompressed, uvc.FormatMJPEG:
		return uint32(v4l2.PixelFmtMJPEG), uvc.FormatMJPEG, nil
	case uvc.FormatUYVY:
		return pixFmtUYVY, uvc.FormatUYVY, nil
	case uvc.FormatRGB:
		return uint32(v4l2.PixelFmtRGB24), uvc.FormatRGB, nil
	case uvc.FormatBGR:
		return pixFmtBGR24, uvc.FormatBGR, nil
	case uvc.FormatGray8:
		return pixFmtGray8, uvc.FormatGray8, nil
	}
	return 0, uvc.FormatUnknown, fmt.Errorf("no fourcc for format %s", f)
}

func formatForPixelFormat(fourcc uint32) uvc.FrameFormat {
	switch fourcc {
	case uint32(v4l2.PixelFmtYUYV):
		return uvc.FormatYUYV
	case uint32(v4l2.PixelFmtMJPEG), uint32(v4l2.PixelFmtJPEG):
		return uvc.FormatMJPEG
	case pixFmtUYVY:
		return uvc.FormatUYVY
	case uint32(v4l2.PixelFmtRGB24):
		return uvc.FormatRGB
	case pixFmtBGR24:
		return uvc.FormatBGR
	case pixFmtGray8:
		return uvc.FormatGray8
	}
	return uvc.FormatUnknown
}
