package utils

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
)

func rgbToRGBA(in []byte, out []byte, width, height int, swap bool) {
	outStride := width * 4
	inStride := width * 3
	for i := 0; i < height; i++ {
		oIndex := i * outStride
		iIndex := i * inStride
		for j := 0; j < width; j++ {
			if swap {
				out[oIndex] = in[iIndex+2]
				out[oIndex+1] = in[iIndex+1]
				out[oIndex+2] = in[iIndex]
			} else {
				out[oIndex] = in[iIndex]
				out[oIndex+1] = in[iIndex+1]
				out[oIndex+2] = in[iIndex+2]
			}
			out[oIndex+3] = 0xff

			oIndex += 4
			iIndex += 3
		}
	}
}

func DecodeRGB(data []byte, width, height int) image.Image {
	i := image.NewRGBA(image.Rect(0, 0, width, height))
	rgbToRGBA(data, i.Pix, width, height, false)

	return i
}

func DecodeBGR(data []byte, width, height int) image.Image {
	i := image.NewRGBA(image.Rect(0, 0, width, height))
	rgbToRGBA(data, i.Pix, width, height, true)

	return i
}

// DecodeCanonical renders one of the canonical stream encodings.
// yuv422 carries raw interleaved chroma and is not renderable here.
func DecodeCanonical(encoding string, data []byte, width, height int) (image.Image, error) {
	switch encoding {
	case "rgb8":
		return DecodeRGB(data, width, height), nil
	case "bgr8":
		return DecodeBGR(data, width, height), nil
	}
	return nil, fmt.Errorf("cannot render encoding %q", encoding)
}

func EncodeJPEG(img image.Image, dst io.Writer, quality int) error {
	return jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
}

func EncodeJPEGFile(img image.Image, file string, quality int) error {
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE, 0660)
	if err != nil {
		return err
	}
	defer f.Close()

	return EncodeJPEG(img, f, quality)
}
