// Package png2exr converts 8-bit PNG images into uncompressed scanline OpenEXR files.
//
// Samples are normalized linearly to [0, 1] (value / 255) and stored as float32
// R, G and B channels. Alpha and grayscale handling, sRGB decoding and resizing
// are explicit options. The package also carries a small scanline OpenEXR reader
// used to inspect and verify produced files.
package png2exr
