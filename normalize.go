package png2exr

import (
	"fmt"
	"image"
	"image/color"
)

// Normalize converts an 8-bit image into float32 planes following Options.Mapping.
//
// info describes the source file layout, when nil it is derived from img.
// Sources with fewer than 3 channels fail with *ShapeError unless
// Options.ExpandGray is set. Alpha is dropped unless Options.KeepAlpha is set.
func Normalize(img image.Image, info *PNGInfo, opts ...func(o *Options)) (*Planes, error) {
	opt := newOptions(opts)
	return normalize(img, info, opt)
}

func normalize(img image.Image, info *PNGInfo, opt Options) (*Planes, error) {
	if img == nil {
		return nil, &ShapeError{Reason: "nil image"}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &ShapeError{Width: w, Height: h, Reason: fmt.Sprintf("zero-sized image %dx%d", w, h)}
	}

	var (
		channels int
		hasAlpha bool
	)
	if info != nil {
		channels, hasAlpha = info.Channels, info.HasAlpha
	} else {
		channels, hasAlpha = imageChannels(img)
	}

	colorChannels := channels
	if hasAlpha {
		colorChannels--
	}
	if colorChannels < 3 && !opt.ExpandGray {
		return nil, &ShapeError{
			Width: w, Height: h, Channels: channels, BitDepth: 8,
			Reason: fmt.Sprintf("%d channel source, want at least 3 (gray expansion disabled)", channels),
		}
	}
	if hasAlpha && !opt.KeepAlpha {
		opt.Logger.Debug("dropping alpha channel")
	}

	mapping := opt.Mapping(hasAlpha)
	planes := &Planes{
		Width:    w,
		Height:   h,
		Channels: make([]Plane, len(mapping)),
	}
	for i, m := range mapping {
		planes.Channels[i] = Plane{Name: m.Name, Pix: make([]float32, w*h)}
	}

	colorLUT := sampleTable(opt.Transfer)
	alphaLUT := sampleTable(TransferLinear)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := nrgbaAt(img, b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			for c, m := range mapping {
				lut := colorLUT
				if m.Source == SampleA {
					lut = alphaLUT
				}
				planes.Channels[c].Pix[i] = lut[px[m.Source]]
			}
		}
	}

	opt.Logger.Debug("normalized planes",
		"width", w, "height", h, "channels", planes.Names(), "transfer", opt.Transfer.String())

	return planes, nil
}

// nrgbaAt returns the non-premultiplied 8-bit R, G, B, A samples of a pixel.
func nrgbaAt(img image.Image, x, y int) [4]uint8 {
	switch src := img.(type) {
	case *image.NRGBA:
		i := src.PixOffset(x, y)
		return [4]uint8{src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3]}
	case *image.Gray:
		v := src.Pix[src.PixOffset(x, y)]
		return [4]uint8{v, v, v, 0xff}
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return [4]uint8{c.R, c.G, c.B, c.A}
}

func imageChannels(img image.Image) (channels int, hasAlpha bool) {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1, false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return 3, false
	}
	return 4, true
}
