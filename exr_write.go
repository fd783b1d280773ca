package png2exr

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// EncodeEXR writes p as an uncompressed single-part scanline OpenEXR file with
// one FLOAT channel per plane. Channels are stored sorted by name, as the
// format requires. Invalid planes and write failures yield *EncodeError.
func EncodeEXR(w io.Writer, p *Planes) error {
	if err := encodeEXR(context.Background(), w, p); err != nil {
		return &EncodeError{Err: err}
	}
	return nil
}

// WriteEXRFile encodes p into path. The data is written to a temporary file in
// the same directory which is renamed over path only after a complete write,
// a failed or cancelled write leaves no file behind. The file is created with
// mode 0644 filtered by the process umask.
func WriteEXRFile(ctx context.Context, path string, p *Planes) (err error) {
	path = filepath.Clean(path)
	if err := p.validate(); err != nil {
		return &EncodeError{Path: path, Err: err}
	}

	f, err := createTemp(path)
	if err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			err = &EncodeError{Path: path, Err: err}
		}
	}()

	if err = encodeEXR(ctx, f, p); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// createTemp opens a new hidden file next to path, unlike os.CreateTemp it
// leaves the permission bits to the umask.
func createTemp(path string) (*os.File, error) {
	dir, base := filepath.Dir(path), filepath.Base(path)
	seed := time.Now().UnixNano()
	for i := int64(0); ; i++ {
		name := filepath.Join(dir, "."+base+"."+strconv.FormatInt(seed+i, 36)+".tmp")
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) || i >= 100 {
			return f, err
		}
	}
}

func encodeEXR(ctx context.Context, w io.Writer, p *Planes) error {
	if err := p.validate(); err != nil {
		return err
	}

	channels := slices.Clone(p.Channels)
	slices.SortStableFunc(channels, func(a, b Plane) int {
		return strings.Compare(a.Name, b.Name)
	})

	width, height := p.Width, p.Height
	window := Box2i{XMax: int32(width - 1), YMax: int32(height - 1)}

	var hdr bytes.Buffer
	writeU32(&hdr, exrMagic)
	writeU32(&hdr, exrVersion)
	writeAttribute(&hdr, "channels", "chlist", chlistPayload(channels))
	writeAttribute(&hdr, "compression", "compression", []byte{byte(CompressionNone)})
	writeAttribute(&hdr, "dataWindow", "box2i", box2iPayload(window))
	writeAttribute(&hdr, "displayWindow", "box2i", box2iPayload(window))
	writeAttribute(&hdr, "lineOrder", "lineOrder", []byte{exrLineOrderIncreasingY})
	writeAttribute(&hdr, "pixelAspectRatio", "float", float32Payload(1))
	writeAttribute(&hdr, "screenWindowCenter", "v2f", float32Payload(0, 0))
	writeAttribute(&hdr, "screenWindowWidth", "float", float32Payload(1))
	hdr.WriteByte(0)

	lineBytes := width * 4 * len(channels)
	blockBytes := 8 + lineBytes
	first := uint64(hdr.Len()) + 8*uint64(height)
	for y := 0; y < height; y++ {
		writeU64(&hdr, first+uint64(y)*uint64(blockBytes))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr.Bytes()); err != nil {
		return err
	}

	block := make([]byte, blockBytes)
	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(block[0:4], uint32(int32(y)))
		binary.LittleEndian.PutUint32(block[4:8], uint32(lineBytes))
		off := 8
		for _, ch := range channels {
			for _, v := range ch.Pix[y*width : (y+1)*width] {
				binary.LittleEndian.PutUint32(block[off:off+4], math.Float32bits(v))
				off += 4
			}
		}
		if _, err := bw.Write(block); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func chlistPayload(channels []Plane) []byte {
	var b bytes.Buffer
	for _, ch := range channels {
		b.WriteString(ch.Name)
		b.WriteByte(0)
		writeU32(&b, uint32(PixelFloat))
		b.Write([]byte{0, 0, 0, 0}) // pLinear, reserved
		writeU32(&b, 1)             // xSampling
		writeU32(&b, 1)             // ySampling
	}
	b.WriteByte(0)
	return b.Bytes()
}

func box2iPayload(box Box2i) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:4], uint32(box.XMin))
	binary.LittleEndian.PutUint32(b[4:8], uint32(box.YMin))
	binary.LittleEndian.PutUint32(b[8:12], uint32(box.XMax))
	binary.LittleEndian.PutUint32(b[12:16], uint32(box.YMax))
	return b
}

func float32Payload(values ...float32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func writeAttribute(b *bytes.Buffer, name, typ string, payload []byte) {
	b.WriteString(name)
	b.WriteByte(0)
	b.WriteString(typ)
	b.WriteByte(0)
	writeU32(b, uint32(len(payload)))
	b.Write(payload)
}

func writeU32(b *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.Write(buf[:])
}

func writeU64(b *bytes.Buffer, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	b.Write(buf[:])
}
