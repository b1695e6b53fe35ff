package canvas

import (
	"image"
	"testing"

	"emmpm-viewer/internal/scene"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestView(t *testing.T) (*SceneView, fyne.Window) {
	t.Helper()
	test.NewApp()
	view := NewSceneView()
	w := test.NewWindow(view)
	t.Cleanup(w.Close)
	w.Resize(fyne.NewSize(300, 200))
	return view, w
}

func TestSceneViewKeepsOneItem(t *testing.T) {
	view, _ := newTestView(t)
	sync := scene.NewSync(view, nil)

	require.NoError(t, sync.Present(image.NewRGBA(image.Rect(0, 0, 50, 40)), true))
	require.NoError(t, sync.Present(image.NewRGBA(image.Rect(0, 0, 60, 30)), true))
	assert.Equal(t, 1, view.ItemCount())

	sync.PresentText("No image loaded")
	assert.Equal(t, 1, view.ItemCount())

	sync.Clear()
	assert.Equal(t, 0, view.ItemCount())
}

func TestSceneViewCentersLargeImage(t *testing.T) {
	view, _ := newTestView(t)
	sync := scene.NewSync(view, nil)
	vp := view.ViewportSize()
	require.False(t, vp.Empty())

	require.NoError(t, sync.Present(image.NewRGBA(image.Rect(0, 0, 1000, 800)), true))
	off := view.Offset()
	assert.InDelta(t, 500-vp.Width/2, float64(off.X), 0.5)
	assert.InDelta(t, 400-vp.Height/2, float64(off.Y), 0.5)

	require.NoError(t, sync.Present(image.NewRGBA(image.Rect(0, 0, 10, 10)), true))
	assert.Equal(t, fyne.NewPos(0, 0), view.Offset(), "small scenes stay at the origin")
}

func TestSceneViewReportsResize(t *testing.T) {
	view, w := newTestView(t)
	var sizes []fyne.Size
	view.OnResize(func(size fyne.Size) { sizes = append(sizes, size) })

	w.Resize(fyne.NewSize(500, 400))
	require.NotEmpty(t, sizes)
	last := sizes[len(sizes)-1]
	assert.Greater(t, last.Width, float32(300))

	n := len(sizes)
	view.CheckResize(last)
	assert.Len(t, sizes, n, "unchanged size is not reported")
}

func TestSceneViewWheel(t *testing.T) {
	view, _ := newTestView(t)
	var steps []bool
	view.OnWheel(func(in bool) { steps = append(steps, in) })

	view.scroll.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 1)})
	view.scroll.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, -1)})
	view.scroll.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(1, 0)})
	assert.Equal(t, []bool{true, false}, steps)
}
