// Package canvas provides the fyne scene view the display engine publishes to.
package canvas

import (
	"image"
	"image/color"

	"emmpm-viewer/internal/scene"
	"emmpm-viewer/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// placeholderSize is the content size shown before anything is presented.
var placeholderSize = fyne.NewSize(400, 300)

// SceneView is a scrollable fyne widget implementing scene.Surface. Items are
// positioned absolutely inside a content container whose minimum size tracks
// the scene rect, so the scroll container sees the full scene extent.
type SceneView struct {
	widget.BaseWidget

	scroll  *zoomScroll
	content *fyne.Container
	extent  *fynecanvas.Rectangle
	items   []*sceneItem

	sceneRect geometry.Rect
	bound     bool

	lastSize fyne.Size

	// Callbacks
	onResize func(size fyne.Size)
	onWheel  func(zoomIn bool)
}

var _ scene.Surface = (*SceneView)(nil)

type sceneItem struct {
	obj       fyne.CanvasObject
	bounds    geometry.Rect
	destroyed bool
}

func (it *sceneItem) Bounds() geometry.Rect { return it.bounds }

func (it *sceneItem) Destroy() {
	if img, ok := it.obj.(*fynecanvas.Image); ok {
		img.Image = nil
	}
	it.obj = nil
	it.destroyed = true
}

// zoomScroll wraps a scroll container but intercepts the wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	view   *SceneView
}

func newZoomScroll(content fyne.CanvasObject, view *SceneView) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, view: view}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	if zs.view.onWheel == nil {
		return
	}
	if ev.Scrolled.DY > 0 {
		zs.view.onWheel(true)
	} else if ev.Scrolled.DY < 0 {
		zs.view.onWheel(false)
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// NewSceneView creates an empty scene view.
func NewSceneView() *SceneView {
	v := &SceneView{}
	v.extent = fynecanvas.NewRectangle(color.Transparent)
	v.extent.SetMinSize(placeholderSize)
	v.content = container.NewWithoutLayout(v.extent)
	v.scroll = newZoomScroll(v.content, v)
	v.ExtendBaseWidget(v)
	return v
}

// OnResize sets a callback invoked when the visible area changes size.
func (v *SceneView) OnResize(callback func(size fyne.Size)) {
	v.onResize = callback
}

// OnWheel sets a callback for mouse wheel steps; zoomIn is true for wheel up.
func (v *SceneView) OnWheel(callback func(zoomIn bool)) {
	v.onWheel = callback
}

// AddImage implements scene.Surface. The raster is shown pixel for pixel.
func (v *SceneView) AddImage(img image.Image) scene.Item {
	bounds := geometry.RectFromImage(img.Bounds())
	obj := fynecanvas.NewImageFromImage(img)
	obj.FillMode = fynecanvas.ImageFillStretch
	obj.ScaleMode = fynecanvas.ImageScalePixels
	size := fyne.NewSize(float32(bounds.Width), float32(bounds.Height))
	obj.SetMinSize(size)
	obj.Resize(size)
	return v.add(obj, bounds)
}

// AddText implements scene.Surface. The node is sized to the rendered text.
func (v *SceneView) AddText(message string) scene.Item {
	obj := fynecanvas.NewText(message, theme.ForegroundColor())
	size := fyne.MeasureText(message, theme.TextSize(), obj.TextStyle)
	obj.Resize(size)
	return v.add(obj, geometry.NewRect(0, 0, float64(size.Width), float64(size.Height)))
}

func (v *SceneView) add(obj fyne.CanvasObject, bounds geometry.Rect) *sceneItem {
	obj.Move(fyne.NewPos(float32(bounds.X), float32(bounds.Y)))
	it := &sceneItem{obj: obj, bounds: bounds}
	v.items = append(v.items, it)
	v.content.Add(obj)
	return it
}

// Remove implements scene.Surface.
func (v *SceneView) Remove(item scene.Item) {
	for i, it := range v.items {
		if it == item {
			v.content.Remove(it.obj)
			v.items = append(v.items[:i], v.items[i+1:]...)
			return
		}
	}
}

// SetSceneRect implements scene.Surface by sizing the scrollable extent.
func (v *SceneView) SetSceneRect(r geometry.Rect) {
	v.sceneRect = r
	size := fyne.NewSize(float32(r.X+r.Width), float32(r.Y+r.Height))
	v.extent.SetMinSize(size)
	v.extent.Resize(size)
	v.content.Resize(size)
}

// Bind implements scene.Surface.
func (v *SceneView) Bind() {
	v.bound = true
}

// CenterOn implements scene.Surface. The offset is clamped to the scrollable
// range so small scenes stay at the origin.
func (v *SceneView) CenterOn(item scene.Item) {
	center := item.Bounds().Center()
	view := v.scroll.scroll.Size()
	extent := v.extent.MinSize()
	x := clampOffset(float32(center.X)-view.Width/2, extent.Width-view.Width)
	y := clampOffset(float32(center.Y)-view.Height/2, extent.Height-view.Height)
	v.scroll.scroll.Offset = fyne.NewPos(x, y)
}

func clampOffset(offset, limit float32) float32 {
	if offset > limit {
		offset = limit
	}
	if offset < 0 {
		return 0
	}
	return offset
}

// Invalidate implements scene.Surface. Fyne redraws whole objects, so the
// region only selects which items need a refresh.
func (v *SceneView) Invalidate(r geometry.Rect) {
	for _, it := range v.items {
		if overlaps(it.bounds, r) {
			fynecanvas.Refresh(it.obj)
		}
	}
	v.scroll.scroll.Refresh()
}

func overlaps(a, b geometry.Rect) bool {
	return a.X < b.X+b.Width && b.X < a.X+a.Width &&
		a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
}

// ViewportSize implements scene.Surface.
func (v *SceneView) ViewportSize() geometry.Size {
	size := v.scroll.scroll.Size()
	return geometry.NewSize(float64(size.Width), float64(size.Height))
}

// Offset returns the current scroll offset.
func (v *SceneView) Offset() fyne.Position {
	return v.scroll.scroll.Offset
}

// ItemCount returns the number of items in the scene.
func (v *SceneView) ItemCount() int {
	return len(v.items)
}

// CheckResize reports a changed visible area to the resize callback.
func (v *SceneView) CheckResize(size fyne.Size) {
	if size.Width <= 0 || size.Height <= 0 || size == v.lastSize {
		return
	}
	v.lastSize = size
	if v.onResize != nil {
		v.onResize(size)
	}
}

// CreateRenderer implements fyne.Widget.
func (v *SceneView) CreateRenderer() fyne.WidgetRenderer {
	return &sceneViewRenderer{view: v}
}

type sceneViewRenderer struct {
	view *SceneView
}

func (r *sceneViewRenderer) Layout(size fyne.Size) {
	r.view.scroll.Resize(size)
	r.view.CheckResize(size)
}

func (r *sceneViewRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *sceneViewRenderer) Refresh() {
	r.view.scroll.Refresh()
}

func (r *sceneViewRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.view.scroll}
}

func (r *sceneViewRenderer) Destroy() {}
