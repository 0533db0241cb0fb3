package uvc

import (
	"bytes"
	"errors"
	"testing"
)

func TestYUYVToBGR(t *testing.T) {
	f := &Frame{
		Format: FormatYUYV,
		Width:  2,
		Height: 1,
		// Black then white, neutral chroma.
		Data: []byte{16, 128, 235, 128},
	}
	dst := make([]byte, 6)
	if err := YUYVToBGR(f, dst); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 255, 255, 255}
	if !bytes.Equal(dst, want) {
		t.Fatalf("got %v, want %v", dst, want)
	}
}

func TestYUYVToBGRShortFrame(t *testing.T) {
	f := &Frame{Format: FormatYUYV, Width: 4, Height: 4, Data: []byte{1, 2, 3}}
	err := YUYVToBGR(f, make([]byte, 4*4*3))
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("err = %v, want ErrShortFrame", err)
	}
}

func TestUYVYToBGR(t *testing.T) {
	f := &Frame{
		Format: FormatUYVY,
		Width:  2,
		Height: 1,
		Data:   []byte{128, 16, 128, 235},
	}
	dst := make([]byte, 6)
	if err := UYVYToBGR(f, dst); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 255, 255, 255}
	if !bytes.Equal(dst, want) {
		t.Fatalf("got %v, want %v", dst, want)
	}
}

func TestAnyToBGRSwapsRGB(t *testing.T) {
	f := &Frame{
		Format: FormatRGB,
		Width:  2,
		Height: 1,
		Data:   []byte{1, 2, 3, 4, 5, 6},
	}
	dst := make([]byte, 6)
	if err := AnyToBGR(f, dst); err != nil {
		t.Fatal(err)
	}
	want := []byte{3, 2, 1, 6, 5, 4}
	if !bytes.Equal(dst, want) {
		t.Fatalf("got %v, want %v", dst, want)
	}
}

func TestAnyToBGRGray(t *testing.T) {
	f := &Frame{Format: FormatGray8, Width: 2, Height: 1, Data: []byte{9, 250}}
	dst := make([]byte, 6)
	if err := AnyToBGR(f, dst); err != nil {
		t.Fatal(err)
	}
	want := []byte{9, 9, 9, 250, 250, 250}
	if !bytes.Equal(dst, want) {
		t.Fatalf("got %v, want %v", dst, want)
	}
}

func TestAnyToBGRRejectsYUYV(t *testing.T) {
	// YUYV must go through the dedicated conversion, never the generic
	// path.
	f := &Frame{Format: FormatYUYV, Width: 2, Height: 1, Data: []byte{16, 128, 16, 128}}
	err := AnyToBGR(f, make([]byte, 6))
	if !errors.Is(err, ErrUnsupportedConversion) {
		t.Fatalf("err = %v, want ErrUnsupportedConversion", err)
	}
}

func TestAnyToBGRRejectsCompressed(t *testing.T) {
	for _, format := range []FrameFormat{FormatMJPEG, FormatUnknown} {
		f := &Frame{Format: format, Width: 2, Height: 1, Data: []byte{1, 2, 3, 4}}
		if err := AnyToBGR(f, make([]byte, 6)); !errors.Is(err, ErrUnsupportedConversion) {
			t.Fatalf("%s: err = %v, want ErrUnsupportedConversion", format, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for mode, want := range map[string]FrameFormat{
		"uncompressed": FormatUncompressed,
		"compressed":   FormatCompressed,
		"yuyv":         FormatYUYV,
		"uyvy":         FormatUYVY,
		"rgb":          FormatRGB,
		"bgr":          FormatBGR,
		"mjpeg":        FormatMJPEG,
		"gray8":        FormatGray8,
	} {
		got, ok := ParseFormat(mode)
		if !ok || got != want {
			t.Fatalf("ParseFormat(%q) = %s, %v", mode, got, ok)
		}
	}

	got, ok := ParseFormat("nv12")
	if ok || got != FormatUncompressed {
		t.Fatalf("ParseFormat(nv12) = %s, %v; want uncompressed fallback", got, ok)
	}
}
