package png2exr

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testPlanes(w, h int, names ...string) *Planes {
	p := &Planes{Width: w, Height: h}
	for c, name := range names {
		pix := make([]float32, w*h)
		for i := range pix {
			pix[i] = float32(i+c*w*h) / float32(len(names)*w*h)
		}
		p.Channels = append(p.Channels, Plane{Name: name, Pix: pix})
	}
	return p
}

func TestEncodeEXR_roundTrip(t *testing.T) {
	src := testPlanes(5, 3, "R", "G", "B")

	var buf bytes.Buffer
	if err := EncodeEXR(&buf, src); err != nil {
		t.Fatalf("EncodeEXR: %v", err)
	}

	data := buf.Bytes()
	if binary.LittleEndian.Uint32(data[0:4]) != exrMagic {
		t.Fatal("missing OpenEXR magic")
	}

	h, err := ParseEXRHeader(data)
	if err != nil {
		t.Fatalf("ParseEXRHeader: %v", err)
	}
	wantChannels := []EXRChannel{
		{Name: "B", PixelType: PixelFloat, XSampling: 1, YSampling: 1},
		{Name: "G", PixelType: PixelFloat, XSampling: 1, YSampling: 1},
		{Name: "R", PixelType: PixelFloat, XSampling: 1, YSampling: 1},
	}
	if diff := cmp.Diff(wantChannels, h.Channels); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}
	if h.Compression != CompressionNone {
		t.Errorf("compression = %s, want NONE", h.Compression)
	}
	if diff := cmp.Diff(Box2i{XMax: 4, YMax: 2}, h.DataWindow); diff != "" {
		t.Errorf("dataWindow mismatch (-want +got):\n%s", diff)
	}
	if h.DisplayWindow != h.DataWindow {
		t.Errorf("displayWindow %v differs from dataWindow %v", h.DisplayWindow, h.DataWindow)
	}
	if h.LineOrderName() != "increasing Y" {
		t.Errorf("line order = %s", h.LineOrderName())
	}

	var attrs []string
	for _, a := range h.Attributes {
		attrs = append(attrs, a.Name)
	}
	wantAttrs := []string{
		"channels", "compression", "dataWindow", "displayWindow", "lineOrder",
		"pixelAspectRatio", "screenWindowCenter", "screenWindowWidth",
	}
	if diff := cmp.Diff(wantAttrs, attrs); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}

	got, err := DecodeEXR(data)
	if err != nil {
		t.Fatalf("DecodeEXR: %v", err)
	}
	for _, name := range []string{"R", "G", "B"} {
		want, _ := src.Channel(name)
		have, ok := got.Channel(name)
		if !ok {
			t.Fatalf("channel %s missing", name)
		}
		if diff := cmp.Diff(want.Pix, have.Pix); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestEncodeEXR_size(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeEXR(&buf, testPlanes(1, 1, "R", "G", "B")); err != nil {
		t.Fatalf("EncodeEXR: %v", err)
	}
	h, err := ParseEXRHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseEXRHeader: %v", err)
	}
	if h.Width() != 1 || h.Height() != 1 {
		t.Fatalf("dimensions %dx%d, want 1x1", h.Width(), h.Height())
	}
	// Header, one offset, one block of y, size and 3 floats.
	data := buf.Bytes()
	offset := binary.LittleEndian.Uint64(data[len(data)-20-8 : len(data)-20])
	if int(offset) != len(data)-20 {
		t.Errorf("offset %d, want %d", offset, len(data)-20)
	}
}

func TestEncodeEXR_invalid(t *testing.T) {
	short := testPlanes(2, 2, "R", "G", "B")
	short.Channels[1].Pix = short.Channels[1].Pix[:3]

	dup := testPlanes(2, 2, "R", "G", "B")
	dup.Channels[2].Name = "R"

	tests := []struct {
		name   string
		planes *Planes
	}{
		{name: "nil", planes: nil},
		{name: "empty", planes: &Planes{}},
		{name: "no channels", planes: &Planes{Width: 1, Height: 1}},
		{name: "plane size mismatch", planes: short},
		{name: "duplicate channel", planes: dup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeEXR(&buf, tt.planes)
			var encodeErr *EncodeError
			if !errors.As(err, &encodeErr) {
				t.Fatalf("expected EncodeError, got %v", err)
			}
			if buf.Len() != 0 {
				t.Errorf("wrote %d bytes for invalid planes", buf.Len())
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeEXR_writeFailure(t *testing.T) {
	err := EncodeEXR(failingWriter{}, testPlanes(4, 4, "R", "G", "B"))
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
}

func TestWriteEXRFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.exr")

	if err := WriteEXRFile(context.Background(), out, testPlanes(3, 2, "R", "G", "B")); err != nil {
		t.Fatalf("WriteEXRFile: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if _, err := DecodeEXR(data); err != nil {
		t.Fatalf("DecodeEXR: %v", err)
	}
	assertDirEntries(t, dir, "out.exr")
}

func TestWriteEXRFile_cancelled(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.exr")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WriteEXRFile(ctx, out, testPlanes(3, 2, "R", "G", "B"))
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	assertDirEntries(t, dir)
}

func TestWriteEXRFile_missingDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "out.exr")

	err := WriteEXRFile(context.Background(), out, testPlanes(1, 1, "R", "G", "B"))
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	if encodeErr.Path != out {
		t.Errorf("path = %q, want %q", encodeErr.Path, out)
	}
}

func assertDirEntries(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	got := []string{}
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if want == nil {
		want = []string{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("directory entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEXRHeader_invalid(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeEXR(&buf, testPlanes(2, 2, "R")); err != nil {
		t.Fatalf("EncodeEXR: %v", err)
	}
	valid := buf.Bytes()

	tiled := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(tiled[4:8], exrVersion|exrFlagTiled)

	multipart := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(multipart[4:8], exrVersion|exrFlagMultipart)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "bad magic", data: []byte{1, 2, 3, 4, 2, 0, 0, 0}},
		{name: "truncated", data: valid[:30]},
		{name: "tiled", data: tiled},
		{name: "multipart", data: multipart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEXRHeader(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// attributePayload returns the offset of the named attribute's payload.
func attributePayload(t *testing.T, data []byte, name, typ string) int {
	t.Helper()
	key := []byte(name + "\x00" + typ + "\x00")
	i := bytes.Index(data, key)
	if i < 0 {
		t.Fatalf("attribute %s not found", name)
	}
	return i + len(key) + 4
}

func TestDecodeEXR_oversizedWindow(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeEXR(&buf, testPlanes(1, 1, "R")); err != nil {
		t.Fatalf("EncodeEXR: %v", err)
	}
	valid := buf.Bytes()
	window := attributePayload(t, valid, "dataWindow", "box2i")
	compression := attributePayload(t, valid, "compression", "compression")

	patch := func(f func(d []byte)) []byte {
		d := append([]byte(nil), valid...)
		f(d)
		return d
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "wide", data: patch(func(d []byte) {
			binary.LittleEndian.PutUint32(d[window+8:], 0x7ffffffe)
		})},
		{name: "wide zips", data: patch(func(d []byte) {
			binary.LittleEndian.PutUint32(d[window+8:], 0x7ffffffe)
			d[compression] = byte(CompressionZIPS)
		})},
		{name: "tall", data: patch(func(d []byte) {
			binary.LittleEndian.PutUint32(d[window+12:], 0x7ffffffe)
		})},
		{name: "full int32 range", data: patch(func(d []byte) {
			binary.LittleEndian.PutUint32(d[window:], 0x80000000)
			binary.LittleEndian.PutUint32(d[window+8:], 0x7fffffff)
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEXRHeader(tt.data); err != nil {
				t.Fatalf("ParseEXRHeader: %v", err)
			}
			if _, err := DecodeEXR(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// zipCompress mirrors exrDecompress: reorder, delta predictor, zlib.
func zipCompress(t *testing.T, raw []byte) []byte {
	t.Helper()
	n := (len(raw) + 1) / 2
	shuffled := make([]byte, len(raw))
	for i, b := range raw {
		if i%2 == 0 {
			shuffled[i/2] = b
		} else {
			shuffled[n+i/2] = b
		}
	}
	for i := len(shuffled) - 1; i > 0; i-- {
		shuffled[i] = byte(int(shuffled[i]) - int(shuffled[i-1]) + 128)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(shuffled); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func TestExrDecompress_zip(t *testing.T) {
	for _, size := range []int{1, 2, 7, 64} {
		raw := make([]byte, size)
		for i := range raw {
			raw[i] = byte(i*37 + 11)
		}
		for _, c := range []Compression{CompressionZIPS, CompressionZIP} {
			got, err := exrDecompress(c, zipCompress(t, raw), len(raw))
			if err != nil {
				t.Fatalf("%s size %d: %v", c, size, err)
			}
			if diff := cmp.Diff(raw, got); diff != "" {
				t.Errorf("%s size %d mismatch (-want +got):\n%s", c, size, diff)
			}
		}
	}
}

func TestHalfToFloat32(t *testing.T) {
	tests := []struct {
		h    uint16
		want float32
	}{
		{h: 0x0000, want: 0},
		{h: 0x3c00, want: 1},
		{h: 0xc000, want: -2},
		{h: 0x3800, want: 0.5},
		{h: 0x7bff, want: 65504},
		{h: 0x0001, want: float32(math.Ldexp(1, -24))},
	}
	for _, tt := range tests {
		if got := halfToFloat32(tt.h); got != tt.want {
			t.Errorf("halfToFloat32(%#04x) = %v, want %v", tt.h, got, tt.want)
		}
	}
	if v := halfToFloat32(0x7c00); !math.IsInf(float64(v), 1) {
		t.Errorf("halfToFloat32(0x7c00) = %v, want +Inf", v)
	}
}
