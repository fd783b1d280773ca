package png2exr

import (
	"fmt"
	"image"
	"strings"

	"github.com/nfnt/resize"
)

// Interpolation selects the resampling filter used when resizing.
type Interpolation int

const (
	// InterpolationNearest is nearest-neighbor sampling.
	InterpolationNearest Interpolation = iota
	// InterpolationBilinear is linear sampling.
	InterpolationBilinear
	// InterpolationBicubic is cubic sampling.
	InterpolationBicubic
	// InterpolationMitchellNetravali is Mitchell-Netravali sampling.
	InterpolationMitchellNetravali
	// InterpolationLanczos2 is Lanczos sampling with a=2.
	InterpolationLanczos2
	// InterpolationLanczos3 is Lanczos sampling with a=3.
	InterpolationLanczos3
)

var interpolationNames = map[Interpolation]string{
	InterpolationNearest:           "nearest",
	InterpolationBilinear:          "bilinear",
	InterpolationBicubic:           "bicubic",
	InterpolationMitchellNetravali: "mitchell",
	InterpolationLanczos2:          "lanczos2",
	InterpolationLanczos3:          "lanczos3",
}

func (i Interpolation) String() string {
	if s, ok := interpolationNames[i]; ok {
		return s
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// ParseInterpolation parses an interpolation name such as "bilinear" or "lanczos3".
func ParseInterpolation(s string) (Interpolation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, v := range interpolationNames {
		if v == s {
			return k, nil
		}
	}
	return InterpolationNearest, fmt.Errorf("unknown interpolation %q", s)
}

func (i Interpolation) filter() resize.InterpolationFunction {
	switch i {
	case InterpolationBilinear:
		return resize.Bilinear
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationMitchellNetravali:
		return resize.MitchellNetravali
	case InterpolationLanczos2:
		return resize.Lanczos2
	case InterpolationLanczos3:
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

// resizeSource scales img to the requested dimensions, a zero dimension keeps
// the aspect ratio. The image is returned unchanged when both are zero or match.
func resizeSource(img image.Image, width, height uint, interp Interpolation) image.Image {
	if width == 0 && height == 0 {
		return img
	}
	b := img.Bounds()
	if (width == 0 || int(width) == b.Dx()) && (height == 0 || int(height) == b.Dy()) {
		return img
	}
	return resize.Resize(width, height, img, interp.filter())
}
