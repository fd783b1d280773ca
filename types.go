package png2exr

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Transfer identifies how 8-bit color samples are mapped to float values.
type Transfer int

const (
	// TransferLinear stores value / 255 with no color-space conversion.
	TransferLinear Transfer = iota
	// TransferSRGB applies the sRGB inverse OETF after scaling to [0, 1].
	TransferSRGB
)

func (t Transfer) String() string {
	switch t {
	case TransferLinear:
		return "linear"
	case TransferSRGB:
		return "srgb"
	default:
		return fmt.Sprintf("Transfer(%d)", int(t))
	}
}

// ParseTransfer parses "linear" or "srgb".
func ParseTransfer(s string) (Transfer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return TransferLinear, nil
	case "srgb":
		return TransferSRGB, nil
	default:
		return TransferLinear, fmt.Errorf("unknown transfer %q", s)
	}
}

// Sample selects one component of a non-premultiplied RGBA pixel.
type Sample int

const (
	SampleR Sample = iota
	SampleG
	SampleB
	SampleA
)

// ChannelMapping binds an output EXR channel name to a source sample.
type ChannelMapping struct {
	Name   string
	Source Sample
}

// rgbMapping is the color mapping used for every conversion.
// Grayscale sources expose the gray value as R, G and B.
var rgbMapping = [...]ChannelMapping{
	{Name: "R", Source: SampleR},
	{Name: "G", Source: SampleG},
	{Name: "B", Source: SampleB},
}

// alphaMapping is appended when Options.KeepAlpha is set and the source has alpha.
var alphaMapping = ChannelMapping{Name: "A", Source: SampleA}

// Plane is a single float32 channel, row-major, Width*Height samples.
type Plane struct {
	Name string
	Pix  []float32
}

// Planes is a set of equally sized float32 channels.
type Planes struct {
	Width    int
	Height   int
	Channels []Plane
}

// Channel returns the plane with the given name.
func (p *Planes) Channel(name string) (*Plane, bool) {
	for i := range p.Channels {
		if p.Channels[i].Name == name {
			return &p.Channels[i], true
		}
	}
	return nil, false
}

// Names returns channel names in plane order.
func (p *Planes) Names() []string {
	names := make([]string, 0, len(p.Channels))
	for _, ch := range p.Channels {
		names = append(names, ch.Name)
	}
	return names
}

func (p *Planes) validate() error {
	if p == nil {
		return fmt.Errorf("nil planes")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", p.Width, p.Height)
	}
	if len(p.Channels) == 0 {
		return fmt.Errorf("no channels")
	}
	seen := make(map[string]bool, len(p.Channels))
	want := p.Width * p.Height
	for _, ch := range p.Channels {
		if ch.Name == "" {
			return fmt.Errorf("empty channel name")
		}
		if len(ch.Name) > 31 {
			return fmt.Errorf("channel name %q is too long", ch.Name)
		}
		if seen[ch.Name] {
			return fmt.Errorf("duplicate channel %q", ch.Name)
		}
		seen[ch.Name] = true
		if len(ch.Pix) != want {
			return fmt.Errorf("channel %s has %d samples, want %d", ch.Name, len(ch.Pix), want)
		}
	}
	return nil
}

// Options controls PNG to EXR conversion.
type Options struct {
	// KeepAlpha writes an A channel when the source has alpha, otherwise alpha is dropped.
	KeepAlpha bool
	// ExpandGray replicates gray samples into R, G and B instead of failing.
	ExpandGray bool
	// Transfer selects linear scaling (default) or sRGB decoding of color channels.
	Transfer Transfer
	// Width and Height resize the source before normalization when non-zero.
	// A zero dimension preserves the aspect ratio.
	Width  uint
	Height uint
	// Interpolation is used when resizing.
	Interpolation Interpolation
	Logger        *slog.Logger
}

func newOptions(opts []func(o *Options)) Options {
	opt := Options{
		Interpolation: InterpolationBilinear,
	}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return opt
}

// Mapping returns a fresh channel mapping for a source with or without alpha.
func (o Options) Mapping(hasAlpha bool) []ChannelMapping {
	m := make([]ChannelMapping, 0, len(rgbMapping)+1)
	m = append(m, rgbMapping[:]...)
	if hasAlpha && o.KeepAlpha {
		m = append(m, alphaMapping)
	}
	return m
}

// Result describes a finished conversion.
type Result struct {
	// EXR holds the encoded file, it is nil for ConvertFile.
	EXR      []byte
	Source   *PNGInfo
	Width    int
	Height   int
	Channels []string
}
