package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vearutop/png2exr"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file.exr]",
	Short: "Print OpenEXR header and channel ranges",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return &png2exr.DecodeError{Path: path, Err: err}
	}

	h, err := png2exr.ParseEXRHeader(data)
	if err != nil {
		return &png2exr.DecodeError{Path: path, Err: err}
	}
	planes, err := png2exr.DecodeEXR(data)
	if err != nil {
		return &png2exr.DecodeError{Path: path, Err: err}
	}
	newLogger(cmd.ErrOrStderr()).Debug("decoded exr", "path", path, "attributes", len(h.Attributes))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:        %s\n", path)
	fmt.Fprintf(out, "Dimensions:  %d x %d\n", h.Width(), h.Height())
	fmt.Fprintf(out, "Compression: %s\n", h.Compression)
	fmt.Fprintf(out, "Line order:  %s\n", h.LineOrderName())
	fmt.Fprintf(out, "File size:   %d bytes\n", len(data))
	fmt.Fprintln(out, "Channels:")
	for i, ch := range h.Channels {
		lo, hi := planeRange(planes.Channels[i].Pix)
		fmt.Fprintf(out, "  %-4s %-5s min=%g max=%g\n", ch.Name, ch.PixelType, lo, hi)
	}
	if verbose {
		fmt.Fprintln(out, "Attributes:")
		for _, a := range h.Attributes {
			fmt.Fprintf(out, "  %s (%s, %d bytes)\n", a.Name, a.Type, a.Size)
		}
	}

	return nil
}

func planeRange(pix []float32) (lo, hi float32) {
	if len(pix) == 0 {
		return 0, 0
	}
	lo, hi = pix[0], pix[0]
	for _, v := range pix[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
