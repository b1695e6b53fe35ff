// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectFromImage converts an image rectangle to a Rect.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Size returns the rectangle's size.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// SizeOf returns the pixel size of an image rectangle.
func SizeOf(r image.Rectangle) Size {
	return Size{Width: float64(r.Dx()), Height: float64(r.Dy())}
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Shrink returns the size reduced by margin on each axis.
func (s Size) Shrink(margin float64) Size {
	return Size{Width: s.Width - margin, Height: s.Height - margin}
}

// Landscape reports whether the size is strictly wider than it is tall.
func (s Size) Landscape() bool {
	return s.Width > s.Height
}

// Scale returns the size multiplied by factor and rounded to whole pixels.
// Each axis is at least one pixel.
func (s Size) Scale(factor float64) image.Point {
	w := int(math.Round(s.Width * factor))
	h := int(math.Round(s.Height * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Point{X: w, Y: h}
}

// FitFactor returns the factor that makes content fill view along the
// content's dominant axis: width when content is landscape, height otherwise.
// ok is false when either size is empty.
func FitFactor(view, content Size) (factor float64, ok bool) {
	if view.Empty() || content.Empty() {
		return 0, false
	}
	if content.Landscape() {
		return view.Width / content.Width, true
	}
	return view.Height / content.Height, true
}
