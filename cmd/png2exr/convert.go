package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vearutop/png2exr"
	"github.com/vearutop/png2exr/internal/config"
)

var (
	configPath    string
	keepAlpha     bool
	expandGray    bool
	transfer      string
	width         uint
	height        uint
	interpolation string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML file with conversion defaults")
	flags.BoolVar(&keepAlpha, "alpha", false, "Write the source alpha as an A channel instead of dropping it")
	flags.BoolVar(&expandGray, "expand-gray", false, "Replicate grayscale samples into R, G and B")
	flags.StringVar(&transfer, "transfer", "linear", "Sample mapping (linear, srgb)")
	flags.UintVar(&width, "width", 0, "Resize to width before conversion (0 keeps aspect ratio)")
	flags.UintVar(&height, "height", 0, "Resize to height before conversion (0 keeps aspect ratio)")
	flags.StringVar(&interpolation, "interpolation", "bilinear", "Resize filter (nearest, bilinear, bicubic, mitchell, lanczos2, lanczos3)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath, outputPath := args[0], args[1]

	opt, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	opt.Logger = newLogger(cmd.ErrOrStderr())

	res, err := png2exr.ConvertFile(cmd.Context(), inputPath, outputPath, func(o *png2exr.Options) {
		*o = opt
	})
	if err != nil {
		return err
	}

	opt.Logger.Debug("converted",
		"input", inputPath,
		"width", res.Width,
		"height", res.Height,
		"channels", res.Channels,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "EXR file saved as %s\n", color.GreenString(outputPath))

	return nil
}

// resolveOptions layers explicitly set flags over the config file over defaults.
func resolveOptions(cmd *cobra.Command) (png2exr.Options, error) {
	opt := png2exr.Options{
		Interpolation: png2exr.InterpolationBilinear,
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return opt, err
	}
	if err := cfg.Apply(&opt); err != nil {
		return opt, err
	}

	flags := cmd.Flags()
	if flags.Changed("alpha") {
		opt.KeepAlpha = keepAlpha
	}
	if flags.Changed("expand-gray") {
		opt.ExpandGray = expandGray
	}
	if flags.Changed("transfer") {
		if opt.Transfer, err = png2exr.ParseTransfer(transfer); err != nil {
			return opt, err
		}
	}
	if flags.Changed("width") {
		opt.Width = width
	}
	if flags.Changed("height") {
		opt.Height = height
	}
	if flags.Changed("interpolation") {
		if opt.Interpolation, err = png2exr.ParseInterpolation(interpolation); err != nil {
			return opt, err
		}
	}

	return opt, nil
}
