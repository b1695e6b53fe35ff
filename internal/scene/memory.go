package scene

import (
	"image"
	"image/color"
	"image/draw"

	"emmpm-viewer/pkg/geometry"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// MemorySurface is an in-process Surface with a fixed viewport. It backs the
// headless renderer and records what a real view would have been asked to do.
type MemorySurface struct {
	viewport  geometry.Size
	items     []*memoryItem
	sceneRect geometry.Rect
	center    geometry.Point2D
	bound     bool

	// Invalidated lists every region passed to Invalidate, oldest first.
	Invalidated []geometry.Rect
}

var _ Surface = (*MemorySurface)(nil)

// NewMemorySurface returns a surface whose viewport has the given size.
func NewMemorySurface(viewport geometry.Size) *MemorySurface {
	return &MemorySurface{viewport: viewport}
}

type memoryItem struct {
	img       image.Image
	text      string
	bounds    geometry.Rect
	destroyed bool
}

func (it *memoryItem) Bounds() geometry.Rect { return it.bounds }
func (it *memoryItem) Destroy() {
	it.img = nil
	it.destroyed = true
}

// AddImage implements Surface.
func (m *MemorySurface) AddImage(img image.Image) Item {
	it := &memoryItem{img: img, bounds: geometry.RectFromImage(img.Bounds())}
	m.items = append(m.items, it)
	return it
}

// AddText implements Surface. The node is sized with the 7x13 bitmap face.
func (m *MemorySurface) AddText(message string) Item {
	face := basicfont.Face7x13
	width := font.MeasureString(face, message).Ceil()
	height := face.Metrics().Height.Ceil()
	it := &memoryItem{text: message, bounds: geometry.NewRect(0, 0, float64(width), float64(height))}
	m.items = append(m.items, it)
	return it
}

// Remove implements Surface.
func (m *MemorySurface) Remove(item Item) {
	for i, it := range m.items {
		if Item(it) == item {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return
		}
	}
}

// SetSceneRect implements Surface.
func (m *MemorySurface) SetSceneRect(r geometry.Rect) { m.sceneRect = r }

// Bind implements Surface.
func (m *MemorySurface) Bind() { m.bound = true }

// CenterOn implements Surface.
func (m *MemorySurface) CenterOn(item Item) { m.center = item.Bounds().Center() }

// Invalidate implements Surface.
func (m *MemorySurface) Invalidate(r geometry.Rect) { m.Invalidated = append(m.Invalidated, r) }

// ViewportSize implements Surface.
func (m *MemorySurface) ViewportSize() geometry.Size { return m.viewport }

// Resize changes the viewport size, as a host window resize would.
func (m *MemorySurface) Resize(viewport geometry.Size) { m.viewport = viewport }

// Items returns the live items in insertion order.
func (m *MemorySurface) Items() []Item {
	out := make([]Item, len(m.items))
	for i, it := range m.items {
		out[i] = it
	}
	return out
}

// SceneRect returns the last scene bounds set.
func (m *MemorySurface) SceneRect() geometry.Rect { return m.sceneRect }

// Center returns the scene point the viewport was last centered on.
func (m *MemorySurface) Center() geometry.Point2D { return m.center }

// Bound reports whether the scene has been attached to the view.
func (m *MemorySurface) Bound() bool { return m.bound }

// Text returns the message of the live text node.
func (m *MemorySurface) Text() (string, bool) {
	for _, it := range m.items {
		if it.img == nil && !it.destroyed {
			return it.text, true
		}
	}
	return "", false
}

// Image returns the raster of the live image node.
func (m *MemorySurface) Image() (image.Image, bool) {
	for _, it := range m.items {
		if it.img != nil {
			return it.img, true
		}
	}
	return nil, false
}

// Snapshot rasterizes the scene: the image node as is, or the text node in
// black on white. It returns nil for an empty scene.
func (m *MemorySurface) Snapshot() image.Image {
	if img, ok := m.Image(); ok {
		return img
	}
	text, ok := m.Text()
	if !ok {
		return nil
	}

	b := m.sceneRect
	w, h := int(b.Width), int(b.Height)
	if w < 1 {
		w = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(0, basicfont.Face7x13.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return out
}
