package png2exr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// PNGInfo describes a PNG file as declared by its IHDR and tRNS chunks.
type PNGInfo struct {
	Width      int
	Height     int
	BitDepth   int
	ColorType  int
	Interlaced bool
	// HasAlpha is set for gray+alpha and RGBA color types and when a tRNS chunk is present.
	HasAlpha bool
	// Channels counts source samples per pixel: 1 gray, 2 gray+alpha, 3 RGB or palette,
	// 4 RGBA. A tRNS chunk adds one.
	Channels int
}

// ColorTypeName returns the PNG color type name.
func (i *PNGInfo) ColorTypeName() string {
	switch i.ColorType {
	case pngColorGray:
		return "gray"
	case pngColorRGB:
		return "rgb"
	case pngColorPalette:
		return "palette"
	case pngColorGrayAlpha:
		return "gray+alpha"
	case pngColorRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("unknown(%d)", i.ColorType)
	}
}

// ReadPNGInfo parses the PNG signature and chunk headers up to the first IDAT.
// Format problems are reported as *DecodeError.
func ReadPNGInfo(data []byte) (*PNGInfo, error) {
	info, err := readPNGInfo(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return info, nil
}

func readPNGInfo(data []byte) (*PNGInfo, error) {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return nil, errors.New("not a PNG file")
	}

	var (
		info    *PNGInfo
		hasTRNS bool
	)

	pos := len(pngSignature)
	for {
		if pos+8 > len(data) {
			return nil, errors.New("truncated PNG chunk header")
		}
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		if length < 0 || pos+12+length > len(data) {
			return nil, fmt.Errorf("truncated PNG chunk %q", typ)
		}
		payload := data[pos+8 : pos+8+length]

		if info == nil && typ != "IHDR" {
			return nil, errors.New("PNG missing IHDR")
		}

		switch typ {
		case "IHDR":
			if info != nil {
				return nil, errors.New("duplicate PNG IHDR")
			}
			if length != 13 {
				return nil, errors.New("invalid PNG IHDR size")
			}
			info = &PNGInfo{
				Width:      int(binary.BigEndian.Uint32(payload[0:4])),
				Height:     int(binary.BigEndian.Uint32(payload[4:8])),
				BitDepth:   int(payload[8]),
				ColorType:  int(payload[9]),
				Interlaced: payload[12] == 1,
			}
		case "tRNS":
			hasTRNS = true
		}

		pos += 12 + length
		if typ == "IDAT" || typ == "IEND" {
			break
		}
	}

	switch info.ColorType {
	case pngColorGray:
		info.Channels = 1
	case pngColorRGB, pngColorPalette:
		info.Channels = 3
	case pngColorGrayAlpha:
		info.Channels = 2
		info.HasAlpha = true
	case pngColorRGBA:
		info.Channels = 4
		info.HasAlpha = true
	default:
		return nil, fmt.Errorf("unsupported PNG color type %d", info.ColorType)
	}
	if hasTRNS && !info.HasAlpha {
		info.HasAlpha = true
		info.Channels++
	}

	return info, nil
}

// SampleDepth returns the bits per decoded sample. Palette entries are always 8-bit.
func (i *PNGInfo) SampleDepth() int {
	if i.ColorType == pngColorPalette {
		return 8
	}
	return i.BitDepth
}

func (i *PNGInfo) checkShape() error {
	if i.Width <= 0 || i.Height <= 0 {
		return &ShapeError{
			Width: i.Width, Height: i.Height, Channels: i.Channels, BitDepth: i.BitDepth,
			Reason: fmt.Sprintf("zero-sized image %dx%d", i.Width, i.Height),
		}
	}
	if i.SampleDepth() != 8 {
		return &ShapeError{
			Width: i.Width, Height: i.Height, Channels: i.Channels, BitDepth: i.BitDepth,
			Reason: fmt.Sprintf("unsupported bit depth %d, want 8", i.BitDepth),
		}
	}
	return nil
}

// LoadPNG validates and decodes an 8-bit PNG.
// Unreadable data yields *DecodeError, a zero-sized image or another bit
// depth yields *ShapeError.
func LoadPNG(data []byte) (image.Image, *PNGInfo, error) {
	info, err := ReadPNGInfo(data)
	if err != nil {
		return nil, nil, err
	}
	if err := info.checkShape(); err != nil {
		return nil, info, err
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, info, &DecodeError{Err: err}
	}
	if b := img.Bounds(); b.Dx() != info.Width || b.Dy() != info.Height {
		return nil, info, &DecodeError{Err: fmt.Errorf("decoded %dx%d, header declares %dx%d",
			b.Dx(), b.Dy(), info.Width, info.Height)}
	}

	return img, info, nil
}
