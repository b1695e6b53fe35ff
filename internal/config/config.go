// Package config holds the display engine configuration, loaded from a JSON
// file and overridden by command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	vimage "emmpm-viewer/internal/image"
	"emmpm-viewer/internal/logging"
	"emmpm-viewer/internal/zoom"
)

// Config holds runtime configuration for rendering and zoom behaviour.
type Config struct {
	// Zoom
	ZoomFactors      []float64 `json:"zoom_factors"`
	DefaultZoomIndex int       `json:"default_zoom_index"`
	FitMargin        float64   `json:"fit_margin"`

	// Compositing
	BlendMode        vimage.BlendMode `json:"blend_mode"`
	CompositeEnabled bool             `json:"composite_enabled"`
	BaseQuality      string           `json:"base_quality"`
	OverlayQuality   string           `json:"overlay_quality"`
	MaxCanvasPixels  int              `json:"max_canvas_pixels"`

	// Host
	LogLevel     string `json:"log_level"`
	WatchOverlay bool   `json:"watch_overlay"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		ZoomFactors:      zoom.DefaultTable().Factors(),
		DefaultZoomIndex: zoom.DefaultTable().DefaultIndex(),
		FitMargin:        zoom.DefaultFitMargin,
		BlendMode:        vimage.DefaultBlendMode,
		CompositeEnabled: false,
		BaseQuality:      vimage.QualitySmooth.String(),
		OverlayQuality:   vimage.QualityFast.String(),
		MaxCanvasPixels:  vimage.DefaultMaxCanvasPixels,
		LogLevel:         "info",
		WatchOverlay:     true,
	}
}

// Validate checks every field and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zoom.NewTable(c.ZoomFactors, c.DefaultZoomIndex); err != nil {
		errs = append(errs, err)
	}
	if !c.BlendMode.Valid() {
		errs = append(errs, fmt.Errorf("blend_mode: %w: %d", vimage.ErrInvalidBlendMode, int(c.BlendMode)))
	}
	if c.FitMargin < 0 {
		errs = append(errs, fmt.Errorf("fit_margin must not be negative, got %v", c.FitMargin))
	}
	if _, err := vimage.ParseQuality(c.BaseQuality); err != nil {
		errs = append(errs, fmt.Errorf("base_quality: %w", err))
	}
	if _, err := vimage.ParseQuality(c.OverlayQuality); err != nil {
		errs = append(errs, fmt.Errorf("overlay_quality: %w", err))
	}
	if c.MaxCanvasPixels <= 0 {
		errs = append(errs, fmt.Errorf("max_canvas_pixels must be positive, got %d", c.MaxCanvasPixels))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// ZoomTable builds the zoom table described by the config.
func (c *Config) ZoomTable() (zoom.Table, error) {
	return zoom.NewTable(c.ZoomFactors, c.DefaultZoomIndex)
}

// Qualities returns the parsed base and overlay resampling qualities.
func (c *Config) Qualities() (base, overlay vimage.Quality, err error) {
	if base, err = vimage.ParseQuality(c.BaseQuality); err != nil {
		return
	}
	overlay, err = vimage.ParseQuality(c.OverlayQuality)
	return
}

// Load reads configuration from the JSON file at path. A missing file yields
// DefaultConfig. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid config %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
