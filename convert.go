package png2exr

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
)

// Convert decodes an 8-bit PNG and returns it encoded as a float32 OpenEXR file.
func Convert(data []byte, opts ...func(o *Options)) (*Result, error) {
	opt := newOptions(opts)

	planes, info, err := preparePlanes(data, opt)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := EncodeEXR(&buf, planes); err != nil {
		return nil, err
	}
	opt.Logger.Debug("encoded exr", "bytes", buf.Len())

	return &Result{
		EXR:      buf.Bytes(),
		Source:   info,
		Width:    planes.Width,
		Height:   planes.Height,
		Channels: planes.Names(),
	}, nil
}

// ConvertFile reads a PNG from inPath and writes the OpenEXR file to outPath.
// The output is either written completely or not at all, cancelling ctx
// aborts the write and removes the partial file.
func ConvertFile(ctx context.Context, inPath, outPath string, opts ...func(o *Options)) (*Result, error) {
	opt := newOptions(opts)

	data, err := os.ReadFile(filepath.Clean(inPath))
	if err != nil {
		return nil, &DecodeError{Path: inPath, Err: err}
	}
	opt.Logger.Debug("read input", "path", inPath, "bytes", len(data))

	planes, info, err := preparePlanes(data, opt)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) && decodeErr.Path == "" {
			decodeErr.Path = inPath
		}
		return nil, err
	}

	if err := WriteEXRFile(ctx, outPath, planes); err != nil {
		return nil, err
	}
	opt.Logger.Debug("wrote exr", "path", outPath)

	return &Result{
		Source:   info,
		Width:    planes.Width,
		Height:   planes.Height,
		Channels: planes.Names(),
	}, nil
}

func preparePlanes(data []byte, opt Options) (*Planes, *PNGInfo, error) {
	img, info, err := LoadPNG(data)
	if err != nil {
		return nil, info, err
	}
	opt.Logger.Debug("decoded png",
		"width", info.Width,
		"height", info.Height,
		"colorType", info.ColorTypeName(),
		"channels", info.Channels,
		"interlaced", info.Interlaced,
	)

	if opt.Width > 0 || opt.Height > 0 {
		img = resizeSource(img, opt.Width, opt.Height, opt.Interpolation)
		b := img.Bounds()
		opt.Logger.Debug("resized source",
			"width", b.Dx(), "height", b.Dy(), "interpolation", opt.Interpolation.String())
	}

	planes, err := normalize(img, info, opt)
	if err != nil {
		return nil, info, err
	}
	return planes, info, nil
}
