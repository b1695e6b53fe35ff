package image

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"emmpm-viewer/pkg/geometry"

	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned when a nil or zero-sized raster is scaled or
// rendered.
var ErrEmptyImage = errors.New("empty image")

// Quality selects the resampling filter.
type Quality int

const (
	QualityFast     Quality = iota // nearest neighbour, keeps label edges hard
	QualityBalanced                // approximate bilinear
	QualitySmooth                  // Catmull-Rom, antialiased
)

func (q Quality) String() string {
	switch q {
	case QualityFast:
		return "fast"
	case QualityBalanced:
		return "balanced"
	case QualitySmooth:
		return "smooth"
	default:
		return "unknown"
	}
}

// ParseQuality maps "fast", "balanced" or "smooth" to a Quality.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "nearest":
		return QualityFast, nil
	case "balanced", "bilinear":
		return QualityBalanced, nil
	case "smooth", "catmullrom":
		return QualitySmooth, nil
	}
	return QualitySmooth, fmt.Errorf("unknown scale quality %q", s)
}

func (q Quality) interpolator() draw.Interpolator {
	switch q {
	case QualityFast:
		return draw.NearestNeighbor
	case QualityBalanced:
		return draw.ApproxBiLinear
	default:
		return draw.CatmullRom
	}
}

// Scaler produces aspect-preserving scaled copies of a raster.
type Scaler struct {
	Quality Quality

	// MaxPixels bounds the output allocation; 0 means DefaultMaxCanvasPixels.
	MaxPixels int
}

// Scale multiplies both axes of img's natural size by factor and resamples
// into a new RGBA raster anchored at the origin. A factor of 1 copies the
// pixels without resampling.
func (s Scaler) Scale(img image.Image, factor float64) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if !(factor > 0) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("scale by %v: invalid factor", factor)
	}

	src := img.Bounds()
	size := geometry.SizeOf(src).Scale(factor)
	dst, err := newCanvas(size.X, size.Y, s.MaxPixels)
	if err != nil {
		return nil, err
	}

	if size == src.Size() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		return dst, nil
	}
	s.Quality.interpolator().Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst, nil
}
