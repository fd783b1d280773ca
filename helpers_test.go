package png2exr

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// gradientRGB covers every 8-bit value in each channel.
func gradientRGB() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 256, 2))
	for x := 0; x < 256; x++ {
		img.SetRGBA(x, 0, color.RGBA{R: uint8(x), G: uint8(255 - x), B: uint8(x / 2), A: 0xff})
		img.SetRGBA(x, 1, color.RGBA{R: uint8(x / 3), G: uint8(x), B: uint8(255 - x), A: 0xff})
	}
	return img
}

func uniformRGB(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func translucentNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(20 * y), B: 200, A: uint8(40 * (x + y))})
		}
	}
	return img
}

func grayImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	for x := 0; x < 4; x++ {
		img.SetGray(x, 0, color.Gray{Y: uint8(x * 85)})
	}
	return img
}

// withTRNS inserts a tRNS chunk with the given payload right after IHDR.
func withTRNS(t *testing.T, data, payload []byte) []byte {
	t.Helper()
	const ihdrEnd = 8 + 12 + 13
	if len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		t.Fatal("PNG does not start with IHDR")
	}

	chunk := make([]byte, 8, 12+len(payload))
	binary.BigEndian.PutUint32(chunk[0:4], uint32(len(payload)))
	copy(chunk[4:8], "tRNS")
	chunk = append(chunk, payload...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...)
}

// blackWhiteRGB is a 2x1 opaque RGB image, black then white.
func blackWhiteRGB() *image.RGBA {
	img := uniformRGB(2, 1, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	img.SetRGBA(0, 0, color.RGBA{A: 0xff})
	return img
}

// blackWhiteGray is a 2x1 gray image, black then white.
func blackWhiteGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(1, 0, color.Gray{Y: 0xff})
	return img
}

func planePix(t *testing.T, p *Planes, name string) []float32 {
	t.Helper()
	pl, ok := p.Channel(name)
	if !ok {
		t.Fatalf("missing channel %s", name)
	}
	return pl.Pix
}

func want(v uint8) float32 {
	return float32(float64(v) / 255.0)
}
