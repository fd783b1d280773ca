package png2exr

const exrMagic = 20000630

// Single-part scanline file, no optional features.
const exrVersion = 2

const (
	exrFlagTiled     = 0x00000200
	exrFlagLongNames = 0x00000400
	exrFlagDeep      = 0x00000800
	exrFlagMultipart = 0x00001000
)

const (
	exrLineOrderIncreasingY = 0
	exrLineOrderDecreasingY = 1
	exrLineOrderRandomY     = 2
)

const (
	pngColorGray      = 0
	pngColorRGB       = 2
	pngColorPalette   = 3
	pngColorGrayAlpha = 4
	pngColorRGBA      = 6
)

const maxSample = 255.0
