package v4l2dev

import (
	"testing"

	"uvc-camd/pkg/uvc"
)

func TestFourCCPacking(t *testing.T) {
	if got := fcc('Y', 'U', 'Y', 'V'); got != 0x56595559 {
		t.Fatalf("fcc(YUYV) = %#x", got)
	}
	if got := fcc('G', 'R', 'E', 'Y'); got != 0x59455247 {
		t.Fatalf("fcc(GREY) = %#x", got)
	}
}

func TestPixelFormatRoundTrip(t *testing.T) {
	for _, format := range []uvc.FrameFormat{
		uvc.FormatYUYV,
		uvc.FormatUYVY,
		uvc.FormatRGB,
		uvc.FormatBGR,
		uvc.FormatMJPEG,
		uvc.FormatGray8,
	} {
		fourcc, actual, err := pixelFormatFor(format)
		if err != nil {
			t.Fatal(err)
		}
		if actual != format {
			t.Fatalf("%s: actual = %s", format, actual)
		}
		if got := formatForPixelFormat(fourcc); got != format {
			t.Fatalf("%s: round trip = %s", format, got)
		}
	}
}

func TestGenericRequestsResolve(t *testing.T) {
	_, actual, err := pixelFormatFor(uvc.FormatUncompressed)
	if err != nil || actual != uvc.FormatYUYV {
		t.Fatalf("uncompressed resolves to %s, %v", actual, err)
	}
	_, actual, err = pixelFormatFor(uvc.FormatCompressed)
	if err != nil || actual != uvc.FormatMJPEG {
		t.Fatalf("compressed resolves to %s, %v", actual, err)
	}
	if _, _, err := pixelFormatFor(uvc.FormatUnknown); err == nil {
		t.Fatal("unknown format should not map")
	}
}

func TestControlMapCoversLiveControls(t *testing.T) {
	for _, id := range []uvc.ControlID{
		uvc.CtrlAEMode,
		uvc.CtrlAEPriority,
		uvc.CtrlExposureAbs,
		uvc.CtrlFocusAuto,
		uvc.CtrlFocusAbs,
		uvc.CtrlGain,
		uvc.CtrlIrisAbs,
		uvc.CtrlBrightness,
	} {
		if _, ok := v4l2ControlID[id]; !ok {
			t.Fatalf("control %d has no V4L2 mapping", id)
		}
	}
	// Scanning mode has no V4L2 counterpart on purpose.
	if _, ok := v4l2ControlID[uvc.CtrlScanningMode]; ok {
		t.Fatal("scanning mode should be unmapped")
	}
}
