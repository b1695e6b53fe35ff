// Command segrender renders a base image, optionally blended with a
// segmentation overlay, through the viewer's display pipeline and writes the
// result as PNG. It runs without a window against a virtual viewport.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"emmpm-viewer/internal/config"
	"emmpm-viewer/internal/display"
	vimage "emmpm-viewer/internal/image"
	"emmpm-viewer/internal/logging"
	"emmpm-viewer/internal/scene"
	"emmpm-viewer/pkg/geometry"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "segrender: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("segrender", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to JSON config file")
	basePath := fs.String("base", "", "Base image ("+vimage.FileFilter()+")")
	overlayPath := fs.String("overlay", "", "Overlay (segmentation) image")
	outPath := fs.String("out", "", "Output PNG path")
	viewport := fs.String("viewport", "1024x768", "Virtual viewport size WxH")
	zoomArg := fs.String("zoom", "default", "Zoom: fit, default, or a factor such as 0.5")
	steps := fs.Int("steps", 0, "Zoom steps after -zoom: positive zooms in, negative out")
	blend := fs.String("blend", "", "Blend mode (overrides config)")
	composite := fs.Bool("composite", false, "Blend the overlay onto the base")
	logLevel := fs.String("log-level", "", "Log level (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *outPath == "" {
		fs.Usage()
		return errors.New("-base and -out are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	opts, err := display.OptionsFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	if *blend != "" {
		if opts.BlendMode, err = vimage.ParseBlendMode(*blend); err != nil {
			return err
		}
	}
	opts.CompositeEnabled = *composite || cfg.CompositeEnabled

	vp, err := parseViewport(*viewport)
	if err != nil {
		return err
	}
	surface := scene.NewMemorySurface(vp)
	d := display.New(surface, opts)

	base, err := vimage.Load(*basePath)
	if err != nil {
		return err
	}
	if *overlayPath != "" {
		overlay, err := vimage.Load(*overlayPath)
		if err != nil {
			return err
		}
		if err := d.SetOverlayImage(overlay); err != nil {
			return err
		}
	}
	if err := d.SetBaseImage(base); err != nil {
		return err
	}
	if err := applyZoom(d, *zoomArg, *steps); err != nil {
		return err
	}

	out := surface.Snapshot()
	if out == nil {
		return errors.New("nothing rendered")
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", *outPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	st := d.State()
	b := out.Bounds()
	fmt.Fprintf(stdout, "%s: %dx%d at %.3fx (fit=%v, composite=%v, blend=%s)\n",
		*outPath, b.Dx(), b.Dy(), st.ZoomFactor, st.FitToWindow, st.CompositeEnabled, st.BlendMode)
	return nil
}

func applyZoom(d *display.Display, zoomArg string, steps int) error {
	switch strings.ToLower(zoomArg) {
	case "", "default":
	case "fit":
		if err := d.FitToWindow(); err != nil {
			return err
		}
	default:
		factor, err := strconv.ParseFloat(zoomArg, 64)
		if err != nil {
			return fmt.Errorf("invalid -zoom %q", zoomArg)
		}
		if err := d.SetZoomFactor(factor); err != nil {
			return err
		}
	}
	for ; steps > 0; steps-- {
		if err := d.IncreaseZoom(); err != nil {
			return err
		}
	}
	for ; steps < 0; steps++ {
		if err := d.DecreaseZoom(); err != nil {
			return err
		}
	}
	return nil
}

func parseViewport(s string) (geometry.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return geometry.Size{}, fmt.Errorf("invalid -viewport %q, want WxH", s)
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return geometry.Size{}, fmt.Errorf("invalid -viewport %q, want WxH", s)
	}
	return geometry.NewSize(float64(width), float64(height)), nil
}
