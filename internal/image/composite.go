package image

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// DefaultMaxCanvasPixels caps a single output raster at 1 GiB of RGBA.
const DefaultMaxCanvasPixels = 1 << 28

// ErrCanvasAllocation is returned when an output raster cannot be allocated.
var ErrCanvasAllocation = errors.New("cannot allocate canvas")

// RenderOptions selects the zoom factor and the composite behaviour of one
// render.
type RenderOptions struct {
	Factor    float64
	Composite bool
	Mode      BlendMode
}

// Renderer combines a scaled base raster with a scaled overlay.
//
// Render is a pure function of its inputs; neither input raster is modified.
type Renderer struct {
	Base    Scaler
	Overlay Scaler

	// MaxCanvasPixels bounds every allocation; 0 means DefaultMaxCanvasPixels.
	MaxCanvasPixels int
}

// NewRenderer returns a renderer using the given resampling qualities for
// the base and overlay rasters.
func NewRenderer(base, overlay Quality, maxCanvasPixels int) *Renderer {
	return &Renderer{
		Base:            Scaler{Quality: base, MaxPixels: maxCanvasPixels},
		Overlay:         Scaler{Quality: overlay, MaxPixels: maxCanvasPixels},
		MaxCanvasPixels: maxCanvasPixels,
	}
}

// Render scales base by opts.Factor. When compositing is enabled and an
// overlay is present, the scaled overlay is painted opaque onto a canvas the
// size of the scaled base and the scaled base is blended on top with
// opts.Mode.
func (r *Renderer) Render(base, overlay image.Image, opts RenderOptions) (*image.RGBA, error) {
	scaledBase, err := r.Base.Scale(base, opts.Factor)
	if err != nil {
		return nil, fmt.Errorf("scale base: %w", err)
	}
	if !opts.Composite || overlay == nil || overlay.Bounds().Empty() {
		return scaledBase, nil
	}

	scaledOverlay, err := r.Overlay.Scale(overlay, opts.Factor)
	if err != nil {
		return nil, fmt.Errorf("scale overlay: %w", err)
	}

	out, err := newCanvas(scaledBase.Rect.Dx(), scaledBase.Rect.Dy(), r.MaxCanvasPixels)
	if err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}
	draw.Draw(out, out.Bounds(), scaledOverlay, image.Point{}, draw.Src)
	blendInto(out, scaledBase, opts.Mode)
	return out, nil
}

// newCanvas allocates a zeroed RGBA raster, turning oversize requests and
// allocation panics into ErrCanvasAllocation.
func newCanvas(w, h, maxPixels int) (canvas *image.RGBA, err error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxCanvasPixels
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrCanvasAllocation, w, h)
	}
	if int64(w) > math.MaxInt32 || int64(h) > math.MaxInt32 || int64(w)*int64(h) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrCanvasAllocation, w, h, maxPixels)
	}

	defer func() {
		if r := recover(); r != nil {
			canvas = nil
			err = fmt.Errorf("%w: %dx%d: %v", ErrCanvasAllocation, w, h, r)
		}
	}()
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}
