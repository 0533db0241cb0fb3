package camera

import (
	"fmt"

	"uvc-camd/pkg/uvc"
)

// Canonical image encodings.
const (
	EncodingBGR8   = "bgr8"
	EncodingRGB8   = "rgb8"
	EncodingYUV422 = "yuv422"
)

// maxImageBytes bounds the output allocation under misconfiguration.
const maxImageBytes = 1920 * 1080 * 3

// Image is a converted frame in one of the canonical encodings. Step
// is always Width*3 bytes; no current format produces narrower rows.
type Image struct {
	Width    int
	Height   int
	Encoding string
	Step     int
	Data     []byte
}

// convertLocked turns a raw frame into a fresh canonical image using
// the fixed policy: BGR, RGB and UYVY are copied verbatim; YUYV uses
// the dedicated YUYV conversion (the generic path mishandles it);
// MJPEG decodes to RGB; everything else goes through the generic
// any-to-BGR conversion. A failed branch drops the frame, never
// producing a partial image.
func (d *Driver) convertLocked(f *uvc.Frame) (*Image, error) {
	w, h := d.cfg.Width, d.cfg.Height
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("output width or height not configured")
	}
	step := w * 3
	if step*h > maxImageBytes {
		return nil, fmt.Errorf("refusing suspiciously large image: %d bytes", step*h)
	}

	img := &Image{
		Width:  w,
		Height: h,
		Step:   step,
		Data:   make([]byte, step*h),
	}

	switch f.Format {
	case uvc.FormatBGR:
		img.Encoding = EncodingBGR8
		copy(img.Data, f.Data)
	case uvc.FormatRGB:
		img.Encoding = EncodingRGB8
		copy(img.Data, f.Data)
	case uvc.FormatUYVY:
		// Raw interleaved chroma; the consumer gets yuv422 as-is.
		img.Encoding = EncodingYUV422
		copy(img.Data, f.Data)
	case uvc.FormatYUYV:
		if err := uvc.YUYVToBGR(f, d.scratch); err != nil {
			return nil, fmt.Errorf("converting yuyv frame: %w", err)
		}
		img.Encoding = EncodingBGR8
		copy(img.Data, d.scratch)
	case uvc.FormatMJPEG:
		if err := uvc.MJPEGToRGB(f, d.scratch); err != nil {
			return nil, fmt.Errorf("converting mjpeg frame: %w", err)
		}
		img.Encoding = EncodingRGB8
		copy(img.Data, d.scratch)
	default:
		if err := uvc.AnyToBGR(f, d.scratch); err != nil {
			return nil, fmt.Errorf("converting %s frame: %w", f.Format, err)
		}
		img.Encoding = EncodingBGR8
		copy(img.Data, d.scratch)
	}

	return img, nil
}
