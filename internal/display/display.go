// Package display ties zoom state, rendering and scene publication together
// for one image view.
//
// A Display is driven by host events (zoom buttons, checkbox toggles, resize
// notifications). Every operation runs to completion synchronously and the
// type is not safe for concurrent use; hosts call it from their UI goroutine.
package display

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	vimage "emmpm-viewer/internal/image"
	"emmpm-viewer/internal/logging"
	"emmpm-viewer/internal/scene"
	"emmpm-viewer/internal/zoom"
	"emmpm-viewer/pkg/geometry"
)

// State is a snapshot of what the display shows and how.
type State struct {
	Base             image.Image
	Overlay          image.Image
	CompositeEnabled bool
	BlendMode        vimage.BlendMode
	ZoomIndex        int
	ZoomFactor       float64
	FitToWindow      bool
}

// Options configures a Display. Zero values select defaults: the default
// zoom table, a zoom.DefaultFitMargin margin, exclusion blending and a
// smooth/fast renderer.
type Options struct {
	Table            zoom.Table
	FitMargin        *float64 // nil selects zoom.DefaultFitMargin
	Renderer         *vimage.Renderer
	BlendMode        vimage.BlendMode
	CompositeEnabled bool
	Logger           *slog.Logger
}

// Display renders a base raster, optionally blended with an overlay, onto a
// scene surface at the current zoom.
type Display struct {
	zoom     *zoom.Controller
	renderer *vimage.Renderer
	sync     *scene.Sync
	logger   *slog.Logger

	base      image.Image
	overlay   image.Image
	composite bool
	mode      vimage.BlendMode

	onZoomChange func(factor float64, fit bool)
}

// New returns a Display publishing onto surface.
func New(surface scene.Surface, opts Options) *Display {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = vimage.NewRenderer(vimage.QualitySmooth, vimage.QualityFast, vimage.DefaultMaxCanvasPixels)
	}
	margin := zoom.DefaultFitMargin
	if opts.FitMargin != nil && *opts.FitMargin >= 0 {
		margin = *opts.FitMargin
	}
	mode := opts.BlendMode
	if !mode.Valid() {
		logger.Warn("unknown blend mode, using default", "mode", int(mode))
		mode = vimage.DefaultBlendMode
	}
	return &Display{
		zoom:      zoom.NewController(opts.Table, margin),
		renderer:  renderer,
		sync:      scene.NewSync(surface, logger),
		logger:    logger,
		composite: opts.CompositeEnabled,
		mode:      mode,
	}
}

// State returns a snapshot of the display state.
func (d *Display) State() State {
	return State{
		Base:             d.base,
		Overlay:          d.overlay,
		CompositeEnabled: d.composite,
		BlendMode:        d.mode,
		ZoomIndex:        d.zoom.Index(),
		ZoomFactor:       d.zoom.Factor(),
		FitToWindow:      d.zoom.FitActive(),
	}
}

// OnZoomChange sets a callback invoked after each successful render with the
// effective factor and the fit flag.
func (d *Display) OnZoomChange(callback func(factor float64, fit bool)) {
	d.onZoomChange = callback
}

// SetBaseImage replaces the primary raster and re-presents it. In fit mode
// the factor is recomputed for the new image. A nil image clears the view.
func (d *Display) SetBaseImage(img image.Image) error {
	if img != nil && img.Bounds().Empty() {
		img = nil
	}
	d.base = img
	if d.base == nil {
		d.sync.Clear()
		return nil
	}
	if d.zoom.FitActive() {
		return d.FitToWindow()
	}
	return d.Refresh()
}

// SetOverlayImage replaces the overlay raster. The view is re-presented only
// when the overlay is visible, i.e. compositing is enabled.
func (d *Display) SetOverlayImage(img image.Image) error {
	d.overlay = img
	if !d.composite {
		return nil
	}
	return d.Refresh()
}

// SetCompositeEnabled toggles blending of the overlay.
func (d *Display) SetCompositeEnabled(enabled bool) error {
	if d.composite == enabled {
		return nil
	}
	d.composite = enabled
	if d.overlay == nil {
		return nil
	}
	return d.Refresh()
}

// SetBlendMode selects how the base is blended over the overlay. Modes
// outside the defined set are rejected and the current mode is kept.
func (d *Display) SetBlendMode(mode vimage.BlendMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", vimage.ErrInvalidBlendMode, int(mode))
	}
	if d.mode == mode {
		return nil
	}
	d.mode = mode
	if !d.composite || d.overlay == nil {
		return nil
	}
	return d.Refresh()
}

// IncreaseZoom steps to the next larger table factor, leaving fit mode.
func (d *Display) IncreaseZoom() error {
	if d.base == nil {
		return nil
	}
	wasFit := d.zoom.FitActive()
	if !d.zoom.Increase() {
		d.logger.Debug("zoom at maximum", "factor", d.zoom.Factor())
		d.notifyModeChange(wasFit)
		return nil
	}
	return d.Refresh()
}

// DecreaseZoom steps to the next smaller table factor, leaving fit mode.
func (d *Display) DecreaseZoom() error {
	if d.base == nil {
		return nil
	}
	wasFit := d.zoom.FitActive()
	if !d.zoom.Decrease() {
		d.logger.Debug("zoom at minimum", "factor", d.zoom.Factor())
		d.notifyModeChange(wasFit)
		return nil
	}
	return d.Refresh()
}

// notifyModeChange reports leaving fit mode when a step was refused at a
// table edge: the factor is unchanged but the mode is not.
func (d *Display) notifyModeChange(wasFit bool) {
	if wasFit && !d.zoom.FitActive() && d.onZoomChange != nil {
		d.onZoomChange(d.zoom.Factor(), false)
	}
}

// FitToWindow enters fit mode and scales the image to the viewport.
// Degenerate geometry leaves the display unchanged.
func (d *Display) FitToWindow() error {
	if d.base == nil {
		return nil
	}
	viewport := d.sync.Surface().ViewportSize()
	factor, err := d.zoom.Fit(viewport, geometry.SizeOf(d.base.Bounds()))
	if errors.Is(err, zoom.ErrDegenerateGeometry) {
		d.logger.Debug("fit skipped", "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	d.logger.Debug("fit to window", "factor", factor, "viewport_width", viewport.Width, "viewport_height", viewport.Height)
	return d.Refresh()
}

// SetZoomFactor assigns the factor directly and re-presents. The fit flag
// is left as is. Without a base image nothing changes.
func (d *Display) SetZoomFactor(factor float64) error {
	if d.base == nil {
		return nil
	}
	if err := d.zoom.SetFactor(factor); err != nil {
		return err
	}
	return d.Refresh()
}

// ActualSize leaves fit mode and returns to the table's default factor.
// Without a base image nothing changes.
func (d *Display) ActualSize() error {
	if d.base == nil {
		return nil
	}
	d.zoom.Reset()
	return d.Refresh()
}

// NotifyResized reacts to a host viewport resize: fit mode recomputes the
// factor, otherwise the image is re-presented at the unchanged factor.
func (d *Display) NotifyResized() error {
	if d.zoom.FitActive() {
		return d.FitToWindow()
	}
	return d.Refresh()
}

// Refresh renders the current state and publishes it. The previously shown
// item stays in place when rendering fails.
func (d *Display) Refresh() error {
	if d.base == nil {
		return nil
	}
	factor := d.zoom.Factor()
	out, err := d.renderer.Render(d.base, d.overlay, vimage.RenderOptions{
		Factor:    factor,
		Composite: d.composite,
		Mode:      d.mode,
	})
	if err != nil {
		d.logger.Error("render failed", "factor", factor, "error", err)
		return fmt.Errorf("render at %.3fx: %w", factor, err)
	}
	if err := d.sync.Present(out, true); err != nil {
		return err
	}
	if d.onZoomChange != nil {
		d.onZoomChange(factor, d.zoom.FitActive())
	}
	return nil
}

// ResetCaches drops both rasters and the rendered item.
func (d *Display) ResetCaches() {
	d.base = nil
	d.overlay = nil
	d.sync.Clear()
}

// DisplayTextMessage shows message in place of any image, bypassing the
// render pipeline.
func (d *Display) DisplayTextMessage(message string) {
	d.sync.PresentText(message)
}
