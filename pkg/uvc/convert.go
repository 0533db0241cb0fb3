package uvc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// YUYVToBGR converts a packed YUYV frame into interleaved BGR bytes.
// dst must hold at least Width*Height*3 bytes.
func YUYVToBGR(f *Frame, dst []byte) error {
	need := f.Width * f.Height * 2
	if len(f.Data) < need {
		return fmt.Errorf("%w: yuyv needs %d bytes, got %d", ErrShortFrame, need, len(f.Data))
	}
	if len(dst) < f.Width*f.Height*3 {
		return fmt.Errorf("yuyv: dst too small: %d", len(dst))
	}
	di := 0
	for si := 0; si+3 < need; si += 4 {
		y0 := int(f.Data[si])
		u := int(f.Data[si+1])
		y1 := int(f.Data[si+2])
		v := int(f.Data[si+3])
		writeBGR(dst[di:], y0, u, v)
		writeBGR(dst[di+3:], y1, u, v)
		di += 6
	}
	return nil
}

// UYVYToBGR converts a packed UYVY frame into interleaved BGR bytes.
func UYVYToBGR(f *Frame, dst []byte) error {
	need := f.Width * f.Height * 2
	if len(f.Data) < need {
		return fmt.Errorf("%w: uyvy needs %d bytes, got %d", ErrShortFrame, need, len(f.Data))
	}
	if len(dst) < f.Width*f.Height*3 {
		return fmt.Errorf("uyvy: dst too small: %d", len(dst))
	}
	di := 0
	for si := 0; si+3 < need; si += 4 {
		u := int(f.Data[si])
		y0 := int(f.Data[si+1])
		v := int(f.Data[si+2])
		y1 := int(f.Data[si+3])
		writeBGR(dst[di:], y0, u, v)
		writeBGR(dst[di+3:], y1, u, v)
		di += 6
	}
	return nil
}

// MJPEGToRGB decodes an MJPEG frame into interleaved RGB bytes. The
// decoded image must match the frame's declared size.
func MJPEGToRGB(f *Frame, dst []byte) error {
	img, err := jpeg.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return fmt.Errorf("mjpeg decode: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != f.Width || b.Dy() != f.Height {
		return fmt.Errorf("mjpeg decode: got %dx%d, want %dx%d", b.Dx(), b.Dy(), f.Width, f.Height)
	}
	if len(dst) < f.Width*f.Height*3 {
		return fmt.Errorf("mjpeg: dst too small: %d", len(dst))
	}
	rgbFromImage(img, dst, f.Width, f.Height)
	return nil
}

// AnyToBGR converts any uncompressed frame format into interleaved BGR
// bytes. It does not handle YUYV; callers must use YUYVToBGR for that
// format. Compressed formats return ErrUnsupportedConversion.
func AnyToBGR(f *Frame, dst []byte) error {
	switch f.Format {
	case FormatBGR:
		need := f.Width * f.Height * 3
		if len(f.Data) < need {
			return fmt.Errorf("%w: bgr needs %d bytes, got %d", ErrShortFrame, need, len(f.Data))
		}
		copy(dst, f.Data[:need])
		return nil
	case FormatRGB:
		need := f.Width * f.Height * 3
		if len(f.Data) < need {
			return fmt.Errorf("%w: rgb needs %d bytes, got %d", ErrShortFrame, need, len(f.Data))
		}
		for i := 0; i+2 < need; i += 3 {
			dst[i] = f.Data[i+2]
			dst[i+1] = f.Data[i+1]
			dst[i+2] = f.Data[i]
		}
		return nil
	case FormatUYVY, FormatUncompressed:
		return UYVYToBGR(f, dst)
	case FormatGray8:
		need := f.Width * f.Height
		if len(f.Data) < need {
			return fmt.Errorf("%w: gray8 needs %d bytes, got %d", ErrShortFrame, need, len(f.Data))
		}
		for i := 0; i < need; i++ {
			g := f.Data[i]
			dst[i*3] = g
			dst[i*3+1] = g
			dst[i*3+2] = g
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedConversion, f.Format)
}

// writeBGR expands one YUV sample to BGR using BT.601 integer math.
func writeBGR(dst []byte, y, u, v int) {
	c := y - 16
	d := u - 128
	e := v - 128
	dst[0] = clamp((298*c + 516*d + 128) >> 8)
	dst[1] = clamp((298*c - 100*d - 208*e + 128) >> 8)
	dst[2] = clamp((298*c + 409*e + 128) >> 8)
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func rgbFromImage(img image.Image, dst []byte, width, height int) {
	b := img.Bounds()
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst[i] = byte(r >> 8)
			dst[i+1] = byte(g >> 8)
			dst[i+2] = byte(bl >> 8)
			i += 3
		}
	}
}
