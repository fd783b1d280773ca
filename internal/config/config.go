package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/vearutop/png2exr"
)

// Config holds conversion defaults read from a YAML file.
// Unset fields leave the corresponding option untouched.
type Config struct {
	// Keep the alpha channel as A
	Alpha *bool `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	// Replicate gray samples into R, G and B
	ExpandGray *bool `yaml:"expandGray,omitempty" json:"expandGray,omitempty"`
	// linear or srgb
	Transfer string  `yaml:"transfer,omitempty" json:"transfer,omitempty"`
	Resize   *Resize `yaml:"resize,omitempty" json:"resize,omitempty"`
}

type Resize struct {
	Width         uint   `yaml:"width,omitempty" json:"width,omitempty"`
	Height        uint   `yaml:"height,omitempty" json:"height,omitempty"`
	Interpolation string `yaml:"interpolation,omitempty" json:"interpolation,omitempty"`
}

// Load reads the config file at path. An empty path returns an empty Config.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Apply(&png2exr.Options{}); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Apply copies the values set in the config into o.
func (c *Config) Apply(o *png2exr.Options) error {
	if c.Alpha != nil {
		o.KeepAlpha = *c.Alpha
	}
	if c.ExpandGray != nil {
		o.ExpandGray = *c.ExpandGray
	}
	if c.Transfer != "" {
		t, err := png2exr.ParseTransfer(c.Transfer)
		if err != nil {
			return err
		}
		o.Transfer = t
	}
	if c.Resize != nil {
		o.Width = c.Resize.Width
		o.Height = c.Resize.Height
		if c.Resize.Interpolation != "" {
			interp, err := png2exr.ParseInterpolation(c.Resize.Interpolation)
			if err != nil {
				return err
			}
			o.Interpolation = interp
		}
	}
	return nil
}
