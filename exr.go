package png2exr

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// PixelType is the storage type of an EXR channel.
type PixelType int32

const (
	PixelUint  PixelType = 0
	PixelHalf  PixelType = 1
	PixelFloat PixelType = 2
)

func (t PixelType) String() string {
	switch t {
	case PixelUint:
		return "UINT"
	case PixelHalf:
		return "HALF"
	case PixelFloat:
		return "FLOAT"
	default:
		return fmt.Sprintf("PixelType(%d)", int32(t))
	}
}

func (t PixelType) size() int {
	if t == PixelHalf {
		return 2
	}
	return 4
}

// Compression is the EXR compression method.
type Compression byte

const (
	CompressionNone Compression = 0
	CompressionRLE  Compression = 1
	CompressionZIPS Compression = 2
	CompressionZIP  Compression = 3
	CompressionPIZ  Compression = 4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "NONE"
	case CompressionRLE:
		return "RLE"
	case CompressionZIPS:
		return "ZIPS"
	case CompressionZIP:
		return "ZIP"
	case CompressionPIZ:
		return "PIZ"
	default:
		return fmt.Sprintf("Compression(%d)", byte(c))
	}
}

func (c Compression) blockLines() int {
	if c == CompressionZIP {
		return 16
	}
	return 1
}

// Box2i is an inclusive integer rectangle.
type Box2i struct {
	XMin, YMin, XMax, YMax int32
}

func (b Box2i) Width() int  { return int(int64(b.XMax)-int64(b.XMin)) + 1 }
func (b Box2i) Height() int { return int(int64(b.YMax)-int64(b.YMin)) + 1 }

// EXRChannel is an entry of the channels attribute.
type EXRChannel struct {
	Name      string
	PixelType PixelType
	PLinear   bool
	XSampling int32
	YSampling int32
}

// EXRAttribute is a header attribute as stored in the file.
type EXRAttribute struct {
	Name string
	Type string
	Size int
}

// EXRHeader holds the parsed header of a single-part scanline EXR file.
type EXRHeader struct {
	Version       uint32
	LongNames     bool
	Channels      []EXRChannel
	Compression   Compression
	DataWindow    Box2i
	DisplayWindow Box2i
	LineOrder     byte
	Attributes    []EXRAttribute
}

// Width returns the data window width.
func (h *EXRHeader) Width() int { return h.DataWindow.Width() }

// Height returns the data window height.
func (h *EXRHeader) Height() int { return h.DataWindow.Height() }

// LineOrderName returns a readable line order.
func (h *EXRHeader) LineOrderName() string {
	switch h.LineOrder {
	case exrLineOrderIncreasingY:
		return "increasing Y"
	case exrLineOrderDecreasingY:
		return "decreasing Y"
	case exrLineOrderRandomY:
		return "random Y"
	default:
		return fmt.Sprintf("unknown(%d)", h.LineOrder)
	}
}

// ParseEXRHeader reads the header of a scanline OpenEXR file.
func ParseEXRHeader(data []byte) (*EXRHeader, error) {
	return parseEXRHeader(bytes.NewReader(data))
}

func parseEXRHeader(r *bytes.Reader) (*EXRHeader, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != exrMagic {
		return nil, errors.New("not an OpenEXR file")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version&0xff != exrVersion {
		return nil, fmt.Errorf("unsupported OpenEXR version %d", version&0xff)
	}
	if version&exrFlagTiled != 0 {
		return nil, errors.New("tiled OpenEXR not supported")
	}
	if version&exrFlagMultipart != 0 {
		return nil, errors.New("multipart OpenEXR not supported")
	}
	if version&exrFlagDeep != 0 {
		return nil, errors.New("deep OpenEXR not supported")
	}

	h := &EXRHeader{
		Version:     version,
		LongNames:   version&exrFlagLongNames != 0,
		Compression: CompressionNone,
	}
	var hasDataWindow bool

	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, errors.New("invalid EXR attribute size")
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		h.Attributes = append(h.Attributes, EXRAttribute{Name: name, Type: typ, Size: int(size)})

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, errors.New("unexpected channels attribute type")
			}
			ch, err := parseEXRChannels(payload)
			if err != nil {
				return nil, err
			}
			h.Channels = ch
		case "dataWindow", "displayWindow":
			if typ != "box2i" {
				return nil, fmt.Errorf("unexpected %s attribute type", name)
			}
			box, err := parseBox2i(payload)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if name == "dataWindow" {
				h.DataWindow = box
				hasDataWindow = true
			} else {
				h.DisplayWindow = box
			}
		case "compression":
			if typ != "compression" || len(payload) < 1 {
				return nil, errors.New("invalid compression attribute")
			}
			h.Compression = Compression(payload[0])
		case "lineOrder":
			if typ != "lineOrder" || len(payload) < 1 {
				return nil, errors.New("invalid lineOrder attribute")
			}
			h.LineOrder = payload[0]
		case "tiles":
			return nil, errors.New("tiled OpenEXR not supported")
		}
	}

	if len(h.Channels) == 0 {
		return nil, errors.New("OpenEXR missing channels")
	}
	if !hasDataWindow {
		return nil, errors.New("OpenEXR missing dataWindow")
	}
	if h.Width() <= 0 || h.Height() <= 0 {
		return nil, errors.New("invalid OpenEXR dimensions")
	}
	return h, nil
}

// DecodeEXR decodes a scanline OpenEXR file into one plane per channel, in
// channel list order. NONE, ZIPS and ZIP compression are supported.
func DecodeEXR(data []byte) (*Planes, error) {
	r := bytes.NewReader(data)
	h, err := parseEXRHeader(r)
	if err != nil {
		return nil, err
	}

	for _, ch := range h.Channels {
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return nil, errors.New("OpenEXR subsampled channels are not supported")
		}
	}
	switch h.Compression {
	case CompressionNone, CompressionZIPS, CompressionZIP:
	default:
		return nil, fmt.Errorf("unsupported OpenEXR compression %s", h.Compression)
	}

	width, height := h.Width(), h.Height()
	blockLines := h.Compression.blockLines()
	blockCount := (height + blockLines - 1) / blockLines
	if err := exrCheckSize(h, blockCount, len(data), r.Len()); err != nil {
		return nil, err
	}
	offsets := make([]uint64, blockCount)
	for i := range offsets {
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		offsets[i] = v
	}

	dst := &Planes{
		Width:    width,
		Height:   height,
		Channels: make([]Plane, len(h.Channels)),
	}
	for i, ch := range h.Channels {
		dst.Channels[i] = Plane{Name: ch.Name, Pix: make([]float32, width*height)}
	}

	baseY := int(h.DataWindow.YMin)
	for block := 0; block < blockCount; block++ {
		if offsets[block] == 0 {
			continue
		}
		if _, err := r.Seek(int64(offsets[block]), io.SeekStart); err != nil {
			return nil, err
		}
		y, err := readI32(r)
		if err != nil {
			return nil, err
		}
		dataSize, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if dataSize < 0 || int64(dataSize) > int64(r.Len()) {
			return nil, errors.New("invalid OpenEXR block size")
		}
		raw := make([]byte, dataSize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}

		startY := int(y) - baseY
		if startY < 0 || startY >= height {
			return nil, errors.New("OpenEXR scanline out of bounds")
		}
		lines := blockLines
		if startY+lines > height {
			lines = height - startY
		}

		expected := exrExpectedBlockBytes(width, lines, h.Channels)
		unpacked, err := exrDecompress(h.Compression, raw, expected)
		if err != nil {
			return nil, err
		}

		if err := exrDecodeBlock(dst, h.Channels, startY, lines, unpacked); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

func parseEXRChannels(data []byte) ([]EXRChannel, error) {
	r := bytes.NewReader(data)
	var channels []EXRChannel
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		pixelType, err := readI32(r)
		if err != nil {
			return nil, err
		}
		pt := PixelType(pixelType)
		if pt != PixelHalf && pt != PixelFloat && pt != PixelUint {
			return nil, fmt.Errorf("unsupported OpenEXR pixel type %d", pixelType)
		}
		pLinear, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if _, err := r.Seek(3, io.SeekCurrent); err != nil {
			return nil, err
		}
		xSampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		ySampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		channels = append(channels, EXRChannel{
			Name:      name,
			PixelType: pt,
			PLinear:   pLinear != 0,
			XSampling: xSampling,
			YSampling: ySampling,
		})
	}
	return channels, nil
}

func parseBox2i(payload []byte) (Box2i, error) {
	if len(payload) != 16 {
		return Box2i{}, errors.New("invalid box2i payload")
	}
	return Box2i{
		XMin: int32(binary.LittleEndian.Uint32(payload[0:4])),
		YMin: int32(binary.LittleEndian.Uint32(payload[4:8])),
		XMax: int32(binary.LittleEndian.Uint32(payload[8:12])),
		YMax: int32(binary.LittleEndian.Uint32(payload[12:16])),
	}, nil
}

// exrMaxZipRatio bounds the deflate expansion ratio.
const exrMaxZipRatio = 1032

// exrCheckSize rejects data windows the file is too small to hold.
func exrCheckSize(h *EXRHeader, blockCount, fileLen, remaining int) error {
	if blockCount > remaining/8 {
		return fmt.Errorf("OpenEXR offset table of %d entries exceeds file size", blockCount)
	}
	rowBytes := exrExpectedBlockBytes(h.Width(), 1, h.Channels)
	if rowBytes <= 0 {
		return errors.New("OpenEXR header declares no pixel data")
	}
	limit := fileLen
	if h.Compression != CompressionNone {
		limit = fileLen * exrMaxZipRatio
	}
	if h.Height() > limit/rowBytes {
		return fmt.Errorf("OpenEXR data window %dx%d exceeds file size %d",
			h.Width(), h.Height(), fileLen)
	}
	return nil
}

func exrExpectedBlockBytes(width, lines int, channels []EXRChannel) int {
	total := 0
	for _, ch := range channels {
		total += width * lines * ch.PixelType.size()
	}
	return total
}

func exrDecompress(compression Compression, data []byte, expected int) ([]byte, error) {
	switch compression {
	case CompressionNone:
		if expected > 0 && len(data) != expected {
			return nil, errors.New("unexpected OpenEXR block size")
		}
		return data, nil
	case CompressionZIPS, CompressionZIP:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		uncompressed, err := io.ReadAll(io.LimitReader(zr, int64(expected)+1))
		if err != nil {
			return nil, err
		}
		if expected > 0 && len(uncompressed) != expected {
			return nil, errors.New("unexpected OpenEXR decompressed size")
		}
		undoPredictor(uncompressed)
		return unshuffleBytes(uncompressed), nil
	default:
		return nil, errors.New("unsupported OpenEXR compression")
	}
}

func undoPredictor(data []byte) {
	for i := 1; i < len(data); i++ {
		data[i] = byte(int(data[i]) + int(data[i-1]) - 128)
	}
}

// unshuffleBytes interleaves the first and second halves of data.
func unshuffleBytes(data []byte) []byte {
	n := (len(data) + 1) / 2
	out := make([]byte, len(data))
	for i := range out {
		if i%2 == 0 {
			out[i] = data[i/2]
		} else {
			out[i] = data[n+i/2]
		}
	}
	return out
}

func exrDecodeBlock(dst *Planes, channels []EXRChannel, startY, lines int, data []byte) error {
	width := dst.Width
	offset := 0
	for row := 0; row < lines; row++ {
		y := startY + row
		for c, ch := range channels {
			lineBytes := width * ch.PixelType.size()
			if offset+lineBytes > len(data) {
				return errors.New("OpenEXR block truncated")
			}
			line := data[offset : offset+lineBytes]
			offset += lineBytes

			if err := exrApplyLine(dst.Channels[c].Pix[y*width:(y+1)*width], ch.PixelType, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func exrApplyLine(dst []float32, pixelType PixelType, line []byte) error {
	for x := range dst {
		switch pixelType {
		case PixelHalf:
			off := x * 2
			dst[x] = halfToFloat32(binary.LittleEndian.Uint16(line[off : off+2]))
		case PixelFloat:
			off := x * 4
			dst[x] = math.Float32frombits(binary.LittleEndian.Uint32(line[off : off+4]))
		case PixelUint:
			off := x * 4
			dst[x] = float32(binary.LittleEndian.Uint32(line[off : off+4]))
		default:
			return errors.New("unsupported OpenEXR pixel type")
		}
	}
	return nil
}

func readNullString(r *bytes.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readI32(r *bytes.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := int32(h>>10) & 0x1F
	mant := int32(h & 0x03FF)

	if exp == 0 {
		if mant == 0 {
			return math.Float32frombits(sign << 31)
		}
		for mant&0x0400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x03FF
	} else if exp == 31 {
		if mant == 0 {
			return math.Float32frombits((sign << 31) | 0x7F800000)
		}
		return math.Float32frombits((sign << 31) | 0x7F800000 | (uint32(mant) << 13))
	}

	exp = exp + (127 - 15)
	mant <<= 13
	bits := (sign << 31) | (uint32(exp) << 23) | uint32(mant)
	return math.Float32frombits(bits)
}
