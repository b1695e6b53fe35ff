// Package scene publishes rendered rasters and text placeholders onto a host
// rendering surface that owns at most one item at a time.
package scene

import (
	"errors"
	"image"
	"log/slog"

	"emmpm-viewer/internal/logging"
	"emmpm-viewer/pkg/geometry"
)

// ErrNothingToPresent is returned by Present for a nil or empty raster.
var ErrNothingToPresent = errors.New("nothing to present")

// Item is a graphical node owned by a Surface.
type Item interface {
	// Bounds returns the node's bounding box in scene coordinates.
	Bounds() geometry.Rect

	// Destroy releases the node's resources. The item must already be
	// detached from its surface.
	Destroy()
}

// Surface is the host rendering surface: a scene of nodes shown through a
// scrollable viewport.
type Surface interface {
	// AddImage inserts an image node and transfers its ownership to the surface.
	AddImage(img image.Image) Item
	// AddText inserts a text node sized to its own bounds.
	AddText(message string) Item
	// Remove detaches item from the scene.
	Remove(item Item)

	// SetSceneRect sets the scene's logical bounds.
	SetSceneRect(r geometry.Rect)
	// Bind attaches the scene to the host view.
	Bind()
	// CenterOn scrolls the viewport so item is centered.
	CenterOn(item Item)
	// Invalidate schedules r for redraw.
	Invalidate(r geometry.Rect)

	// ViewportSize returns the visible area of the host view.
	ViewportSize() geometry.Size
}

// Sync keeps exactly one item on a Surface. The previous item is detached
// and destroyed before the next is inserted.
//
// Sync is not safe for concurrent use.
type Sync struct {
	surface Surface
	current Item
	logger  *slog.Logger
}

// NewSync returns a Sync publishing onto surface. A nil logger discards.
func NewSync(surface Surface, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sync{surface: surface, logger: logger}
}

// Surface returns the surface the sync publishes to.
func (s *Sync) Surface() Surface {
	return s.surface
}

// Current returns the live item, or nil.
func (s *Sync) Current() Item {
	return s.current
}

// Present replaces the current item with an image node for img, fits the
// scene to it and centers the viewport on it. With forceRepaint the new
// bounds are invalidated.
func (s *Sync) Present(img image.Image, forceRepaint bool) error {
	if img == nil || img.Bounds().Empty() {
		return ErrNothingToPresent
	}
	s.Clear()

	item := s.surface.AddImage(img)
	s.current = item
	bounds := s.show(item)
	if forceRepaint {
		s.surface.Invalidate(bounds)
	}
	s.logger.Debug("presented image", "width", bounds.Width, "height", bounds.Height)
	return nil
}

// PresentText replaces the current item with a text node and always repaints.
func (s *Sync) PresentText(message string) {
	s.Clear()

	item := s.surface.AddText(message)
	s.current = item
	s.surface.Invalidate(s.show(item))
	s.logger.Debug("presented text", "message", message)
}

// Clear detaches and destroys the current item, if any.
func (s *Sync) Clear() {
	if s.current == nil {
		return
	}
	item := s.current
	s.current = nil
	s.surface.Remove(item)
	item.Destroy()
}

func (s *Sync) show(item Item) geometry.Rect {
	bounds := item.Bounds()
	s.surface.SetSceneRect(bounds)
	s.surface.Bind()
	s.surface.CenterOn(item)
	return bounds
}
