package display

import (
	"image"
	"image/color"
	"testing"

	"emmpm-viewer/internal/config"
	vimage "emmpm-viewer/internal/image"
	"emmpm-viewer/internal/scene"
	"emmpm-viewer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func newTestDisplay(t *testing.T, viewport geometry.Size) (*Display, *scene.MemorySurface) {
	t.Helper()
	surface := scene.NewMemorySurface(viewport)
	d := New(surface, Options{
		Renderer: vimage.NewRenderer(vimage.QualityFast, vimage.QualityFast, 0),
	})
	return d, surface
}

func shown(t *testing.T, surface *scene.MemorySurface) image.Image {
	t.Helper()
	require.Len(t, surface.Items(), 1)
	img, ok := surface.Image()
	require.True(t, ok, "expected an image node")
	return img
}

func TestInitialState(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	st := d.State()
	assert.Equal(t, 1.0, st.ZoomFactor)
	assert.Equal(t, 4, st.ZoomIndex)
	assert.False(t, st.FitToWindow)
	assert.Nil(t, st.Base)
	assert.Empty(t, surface.Items())
}

func TestIncreaseZoom(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	require.NoError(t, d.SetBaseImage(solid(10, 8, color.RGBA{1, 2, 3, 255})))

	require.NoError(t, d.IncreaseZoom())
	assert.Equal(t, 1.5, d.State().ZoomFactor)
	assert.Equal(t, image.Rect(0, 0, 15, 12), shown(t, surface).Bounds())

	for i := 0; i < 10; i++ {
		require.NoError(t, d.IncreaseZoom())
	}
	assert.Equal(t, 6.0, d.State().ZoomFactor)
	repaints := len(surface.Invalidated)

	require.NoError(t, d.IncreaseZoom())
	assert.Equal(t, 6.0, d.State().ZoomFactor)
	assert.Equal(t, repaints, len(surface.Invalidated), "no re-render at maximum")
	assert.Equal(t, image.Rect(0, 0, 60, 48), shown(t, surface).Bounds())
}

func TestDecreaseZoom(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	require.NoError(t, d.SetBaseImage(solid(100, 80, color.RGBA{1, 2, 3, 255})))
	require.NoError(t, d.IncreaseZoom())
	require.Equal(t, 1.5, d.State().ZoomFactor)

	require.NoError(t, d.DecreaseZoom())
	assert.Equal(t, 1.0, d.State().ZoomFactor)

	for i := 0; i < 10; i++ {
		require.NoError(t, d.DecreaseZoom())
	}
	assert.Equal(t, 0.1, d.State().ZoomFactor)
	require.NoError(t, d.DecreaseZoom())
	assert.Equal(t, 0.1, d.State().ZoomFactor)
	assert.Equal(t, image.Rect(0, 0, 10, 8), shown(t, surface).Bounds())
}

func TestFitToWindow(t *testing.T) {
	tests := []struct {
		name     string
		img      image.Point
		viewport geometry.Size
		want     float64
		shown    image.Rectangle
	}{
		{"wide image fills width", image.Pt(800, 600), geometry.NewSize(804, 604), 1.0, image.Rect(0, 0, 800, 600)},
		{"large image halves", image.Pt(1600, 1200), geometry.NewSize(804, 604), 0.5, image.Rect(0, 0, 800, 600)},
		{"tall image fills height", image.Pt(100, 200), geometry.NewSize(1000, 104), 0.5, image.Rect(0, 0, 50, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, surface := newTestDisplay(t, tt.viewport)
			require.NoError(t, d.SetBaseImage(solid(tt.img.X, tt.img.Y, color.RGBA{9, 9, 9, 255})))

			require.NoError(t, d.FitToWindow())
			st := d.State()
			assert.True(t, st.FitToWindow)
			assert.InDelta(t, tt.want, st.ZoomFactor, 1e-12)
			assert.Equal(t, 9, st.ZoomIndex, "fit selects the sentinel slot")
			assert.Equal(t, tt.shown, shown(t, surface).Bounds())
		})
	}
}

func TestFitDegenerateViewportIsNoop(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(0, 0))
	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	before := len(surface.Invalidated)

	require.NoError(t, d.FitToWindow())
	assert.False(t, d.State().FitToWindow)
	assert.Equal(t, 1.0, d.State().ZoomFactor)
	assert.Equal(t, before, len(surface.Invalidated))
}

func TestStepLeavesFit(t *testing.T) {
	d, _ := newTestDisplay(t, geometry.NewSize(734, 600))
	require.NoError(t, d.SetBaseImage(solid(1000, 500, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.FitToWindow())
	require.InDelta(t, 0.73, d.State().ZoomFactor, 1e-12)

	require.NoError(t, d.IncreaseZoom())
	assert.False(t, d.State().FitToWindow)
	assert.Equal(t, 1.0, d.State().ZoomFactor)
}

func TestNotifyResized(t *testing.T) {
	t.Run("refits in fit mode", func(t *testing.T) {
		d, surface := newTestDisplay(t, geometry.NewSize(804, 604))
		require.NoError(t, d.SetBaseImage(solid(800, 600, color.RGBA{9, 9, 9, 255})))
		require.NoError(t, d.FitToWindow())

		surface.Resize(geometry.NewSize(404, 304))
		require.NoError(t, d.NotifyResized())
		assert.InDelta(t, 0.5, d.State().ZoomFactor, 1e-12)
		assert.True(t, d.State().FitToWindow)
		assert.Equal(t, image.Rect(0, 0, 400, 300), shown(t, surface).Bounds())
	})

	t.Run("redraws at unchanged factor otherwise", func(t *testing.T) {
		d, surface := newTestDisplay(t, geometry.NewSize(804, 604))
		require.NoError(t, d.SetBaseImage(solid(80, 60, color.RGBA{9, 9, 9, 255})))
		require.NoError(t, d.IncreaseZoom())
		before := len(surface.Invalidated)

		surface.Resize(geometry.NewSize(100, 100))
		require.NoError(t, d.NotifyResized())
		assert.Equal(t, 1.5, d.State().ZoomFactor)
		assert.Equal(t, before+1, len(surface.Invalidated))
		assert.Equal(t, image.Rect(0, 0, 120, 90), shown(t, surface).Bounds())
	})
}

func TestNewBaseRefitsInFitMode(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(804, 604))
	require.NoError(t, d.SetBaseImage(solid(800, 600, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.FitToWindow())

	require.NoError(t, d.SetBaseImage(solid(1600, 1200, color.RGBA{9, 9, 9, 255})))
	assert.InDelta(t, 0.5, d.State().ZoomFactor, 1e-12)
	assert.Equal(t, image.Rect(0, 0, 800, 600), shown(t, surface).Bounds())
}

func TestCompositeDisabledIgnoresOverlay(t *testing.T) {
	base := solid(20, 10, color.RGBA{200, 100, 50, 255})

	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	require.NoError(t, d.SetBaseImage(base))
	alone := shown(t, surface).(*image.RGBA)

	for _, overlay := range []image.Image{
		solid(20, 10, color.RGBA{255, 255, 255, 255}),
		solid(3, 3, color.RGBA{0, 0, 0, 255}),
	} {
		require.NoError(t, d.SetOverlayImage(overlay))
		require.NoError(t, d.Refresh())
		got := shown(t, surface).(*image.RGBA)
		assert.Equal(t, alone.Pix, got.Pix)
	}
}

func TestCompositeToggleAndBlendMode(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	require.NoError(t, d.SetBaseImage(solid(4, 4, color.RGBA{255, 255, 255, 255})))
	require.NoError(t, d.SetOverlayImage(solid(4, 4, color.RGBA{10, 20, 30, 255})))

	require.NoError(t, d.SetCompositeEnabled(true))
	out := shown(t, surface).(*image.RGBA)
	assert.Equal(t, color.RGBA{245, 235, 225, 255}, out.RGBAAt(1, 1))

	require.NoError(t, d.SetBlendMode(vimage.BlendMultiply))
	out = shown(t, surface).(*image.RGBA)
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, out.RGBAAt(1, 1))

	require.NoError(t, d.SetCompositeEnabled(false))
	out = shown(t, surface).(*image.RGBA)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(1, 1))
}

func TestRepeatedPresentKeepsOneItem(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.Refresh())
	require.NoError(t, d.Refresh())
	assert.Len(t, surface.Items(), 1)
}

func TestResetCachesMakesEverythingNoop(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.SetOverlayImage(solid(10, 10, color.RGBA{1, 1, 1, 255})))

	d.ResetCaches()
	assert.Empty(t, surface.Items())
	assert.Nil(t, d.State().Base)
	assert.Nil(t, d.State().Overlay)

	assert.NoError(t, d.IncreaseZoom())
	assert.NoError(t, d.DecreaseZoom())
	assert.NoError(t, d.FitToWindow())
	assert.NoError(t, d.NotifyResized())
	assert.NoError(t, d.Refresh())
	assert.NoError(t, d.ActualSize())
	assert.NoError(t, d.SetZoomFactor(4))
	assert.NoError(t, d.SetCompositeEnabled(true))
	assert.Empty(t, surface.Items())
	assert.Equal(t, 1.0, d.State().ZoomFactor)
	assert.Equal(t, 4, d.State().ZoomIndex)

	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	assert.Equal(t, image.Rect(0, 0, 10, 10), shown(t, surface).Bounds(), "next image at the untouched factor")
}

func TestZoomWithoutBaseKeepsFitState(t *testing.T) {
	d, _ := newTestDisplay(t, geometry.NewSize(804, 604))
	require.NoError(t, d.SetBaseImage(solid(400, 300, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.FitToWindow())
	d.ResetCaches()

	require.NoError(t, d.ActualSize())
	require.NoError(t, d.SetZoomFactor(0.5))
	st := d.State()
	assert.True(t, st.FitToWindow)
	assert.Equal(t, 2.0, st.ZoomFactor)
}

func TestZeroOptionsSelectDefaults(t *testing.T) {
	surface := scene.NewMemorySurface(geometry.NewSize(804, 604))
	d := New(surface, Options{})
	assert.Equal(t, vimage.BlendExclusion, d.State().BlendMode)

	require.NoError(t, d.SetBaseImage(solid(800, 600, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.FitToWindow())
	assert.Equal(t, 1.0, d.State().ZoomFactor, "4 px margin")
	assert.Equal(t, image.Rect(0, 0, 800, 600), shown(t, surface).Bounds())

	zero := 0.0
	d = New(scene.NewMemorySurface(geometry.NewSize(804, 604)), Options{FitMargin: &zero})
	require.NoError(t, d.SetBaseImage(solid(800, 600, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.FitToWindow())
	assert.InDelta(t, 1.005, d.State().ZoomFactor, 1e-9, "explicit zero margin")
}

func TestUndefinedBlendMode(t *testing.T) {
	d := New(scene.NewMemorySurface(geometry.NewSize(10, 10)), Options{BlendMode: vimage.BlendMode(9)})
	assert.Equal(t, vimage.DefaultBlendMode, d.State().BlendMode)

	require.NoError(t, d.SetBlendMode(vimage.BlendScreen))
	err := d.SetBlendMode(vimage.BlendMode(-2))
	assert.ErrorIs(t, err, vimage.ErrInvalidBlendMode)
	assert.Equal(t, vimage.BlendScreen, d.State().BlendMode)
}

func TestDisplayTextMessage(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.SetOverlayImage(solid(10, 10, color.RGBA{1, 1, 1, 255})))
	require.NoError(t, d.SetCompositeEnabled(true))
	require.NoError(t, d.IncreaseZoom())

	d.DisplayTextMessage("Error")
	require.Len(t, surface.Items(), 1)
	_, ok := surface.Image()
	assert.False(t, ok)
	text, ok := surface.Text()
	assert.True(t, ok)
	assert.Equal(t, "Error", text)
}

func TestAllocationFailureKeepsPriorItem(t *testing.T) {
	surface := scene.NewMemorySurface(geometry.NewSize(640, 480))
	renderer := vimage.NewRenderer(vimage.QualityFast, vimage.QualityFast, 0)
	renderer.MaxCanvasPixels = 150
	d := New(surface, Options{Renderer: renderer})

	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.SetOverlayImage(solid(10, 10, color.RGBA{1, 1, 1, 255})))
	require.NoError(t, d.SetCompositeEnabled(true), "100 px canvas fits")
	prior := surface.Items()[0]

	err := d.IncreaseZoom()
	require.Error(t, err)
	assert.ErrorIs(t, err, vimage.ErrCanvasAllocation)
	require.Len(t, surface.Items(), 1)
	assert.Same(t, prior, surface.Items()[0], "failed render must not blank the view")
}

func TestSetZoomFactor(t *testing.T) {
	d, surface := newTestDisplay(t, geometry.NewSize(640, 480))
	assert.NoError(t, d.SetZoomFactor(2), "no base: nothing changes")
	assert.Empty(t, surface.Items())
	assert.Equal(t, 1.0, d.State().ZoomFactor)

	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.SetZoomFactor(2))
	assert.Equal(t, image.Rect(0, 0, 20, 20), shown(t, surface).Bounds())
	assert.Equal(t, 6, d.State().ZoomIndex)
	assert.Error(t, d.SetZoomFactor(0))

	require.NoError(t, d.ActualSize())
	assert.Equal(t, 1.0, d.State().ZoomFactor)
	assert.Equal(t, image.Rect(0, 0, 10, 10), shown(t, surface).Bounds())
}

func TestOnZoomChange(t *testing.T) {
	d, _ := newTestDisplay(t, geometry.NewSize(804, 604))
	var factors []float64
	var fits []bool
	d.OnZoomChange(func(f float64, fit bool) {
		factors = append(factors, f)
		fits = append(fits, fit)
	})

	require.NoError(t, d.SetBaseImage(solid(800, 600, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.IncreaseZoom())
	require.NoError(t, d.FitToWindow())
	assert.Equal(t, []float64{1.0, 1.5, 1.0}, factors)
	assert.Equal(t, []bool{false, false, true}, fits)
}

func TestStepAtTableEdgeReportsLeavingFit(t *testing.T) {
	d, _ := newTestDisplay(t, geometry.NewSize(804, 604))
	var fits []bool
	var factors []float64
	d.OnZoomChange(func(f float64, fit bool) {
		factors = append(factors, f)
		fits = append(fits, fit)
	})

	// 600 / 10 = 60x, above the largest table factor.
	require.NoError(t, d.SetBaseImage(solid(10, 10, color.RGBA{9, 9, 9, 255})))
	require.NoError(t, d.FitToWindow())
	require.NoError(t, d.IncreaseZoom())
	assert.False(t, d.State().FitToWindow)
	assert.Equal(t, []bool{false, true, false}, fits)
	assert.Equal(t, 60.0, factors[len(factors)-1])

	require.NoError(t, d.IncreaseZoom())
	assert.Len(t, fits, 3, "no mode change, no callback")
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BlendMode = vimage.BlendScreen
	cfg.CompositeEnabled = true

	opts, err := OptionsFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, vimage.BlendScreen, opts.BlendMode)
	assert.True(t, opts.CompositeEnabled)
	assert.Equal(t, vimage.QualitySmooth, opts.Renderer.Base.Quality)
	assert.Equal(t, vimage.QualityFast, opts.Renderer.Overlay.Quality)

	d := New(scene.NewMemorySurface(geometry.NewSize(10, 10)), opts)
	assert.True(t, d.State().CompositeEnabled)

	cfg.ZoomFactors = []float64{3, 2}
	_, err = OptionsFromConfig(cfg, nil)
	assert.Error(t, err)
}
