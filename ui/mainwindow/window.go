// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"emmpm-viewer/internal/app"
	"emmpm-viewer/internal/config"
	"emmpm-viewer/internal/display"
	vimage "emmpm-viewer/internal/image"
	"emmpm-viewer/internal/logging"
	"emmpm-viewer/internal/version"
	"emmpm-viewer/ui/canvas"
	"emmpm-viewer/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	appTitle    = "EM/MPM Viewer"
	placeholder = "Open an image to begin (File > Open Image...)"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app     fyne.App
	session *app.Session
	display *display.Display
	view    *canvas.SceneView
	prefs   *prefs.Prefs
	cfg     *config.Config
	logger  *slog.Logger

	watcher *app.OverlayWatcher

	// Widgets that track state
	statusBar       *widget.Label
	zoomLabel       *widget.Label
	compositeCheck  *widget.Check
	blendSelect     *widget.Select
	fitToWindowItem *fyne.MenuItem
	compositeItem   *fyne.MenuItem
}

// New creates the main window and wires the display to the session.
func New(fyneApp fyne.App, session *app.Session, cfg *config.Config, p *prefs.Prefs, logger *slog.Logger) (*MainWindow, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	mw := &MainWindow{
		Window:  fyneApp.NewWindow(appTitle),
		app:     fyneApp,
		session: session,
		prefs:   p,
		cfg:     cfg,
		logger:  logger,
	}

	opts, err := display.OptionsFromConfig(cfg, logger.With("component", "display"))
	if err != nil {
		return nil, err
	}
	if mode, err := vimage.ParseBlendMode(p.String(prefs.KeyBlendMode)); err == nil {
		opts.BlendMode = mode
	}
	opts.CompositeEnabled = p.Bool(prefs.KeyComposite, opts.CompositeEnabled)

	mw.view = canvas.NewSceneView()
	mw.display = display.New(mw.view, opts)

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	mw.Resize(fyne.NewSize(
		float32(p.FloatWithFallback(prefs.KeyWindowWidth, 1024)),
		float32(p.FloatWithFallback(prefs.KeyWindowHeight, 768)),
	))
	mw.SetOnClosed(mw.onClosed)
	mw.display.DisplayTextMessage(placeholder)
	return mw, nil
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.statusBar = widget.NewLabel("Ready")
	mw.zoomLabel = widget.NewLabel("")

	toolbar := mw.createToolbar()

	content := container.NewBorder(
		toolbar, // top
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.zoomLabel, mw.statusBar)), // bottom
		nil,     // left
		nil,     // right
		mw.view, // center
	)
	mw.SetContent(content)
}

// createToolbar creates the toolbar with zoom and compositing controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	zoomOutBtn := widget.NewButton("-", mw.onZoomOut)
	zoomInBtn := widget.NewButton("+", mw.onZoomIn)
	fitBtn := widget.NewButton("Fit", mw.onFitToWindow)
	actualBtn := widget.NewButton("1:1", mw.onActualSize)

	state := mw.display.State()
	mw.compositeCheck = widget.NewCheck("Composite", mw.onCompositeChanged)
	mw.compositeCheck.SetChecked(state.CompositeEnabled)

	var names []string
	for _, m := range vimage.BlendModes() {
		names = append(names, m.String())
	}
	mw.blendSelect = widget.NewSelect(names, mw.onBlendSelected)
	mw.blendSelect.SetSelected(state.BlendMode.String())

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		fitBtn,
		actualBtn,
		widget.NewSeparator(),
		mw.compositeCheck,
		widget.NewLabel("Blend:"),
		mw.blendSelect,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", func() { mw.chooseImage(false) }),
		fyne.NewMenuItem("Open Overlay...", func() { mw.chooseImage(true) }),
		fyne.NewMenuItem("Reload Overlay", mw.onReloadOverlay),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Close", mw.session.Close),
	)

	mw.fitToWindowItem = fyne.NewMenuItem("Fit to Window", mw.onFitToWindow)
	mw.compositeItem = fyne.NewMenuItem("Composite Overlay", func() {
		mw.compositeCheck.SetChecked(!mw.display.State().CompositeEnabled)
	})
	mw.compositeItem.Checked = mw.display.State().CompositeEnabled

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
		fyne.NewMenuItemSeparator(),
		mw.compositeItem,
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, helpMenu))
}

// setupEventHandlers connects session events, view callbacks and zoom
// updates to the display.
func (mw *MainWindow) setupEventHandlers() {
	mw.session.On(app.EventBaseLoaded, func(data interface{}) {
		img, ok := data.(image.Image)
		if !ok {
			return
		}
		mw.SetTitle(appTitle + " - " + filepath.Base(mw.session.BasePath()))
		mw.handle(mw.display.SetBaseImage(img))
		b := img.Bounds()
		mw.updateStatus(fmt.Sprintf("%s (%d x %d)", filepath.Base(mw.session.BasePath()), b.Dx(), b.Dy()))
	})

	mw.session.On(app.EventOverlayUpdated, func(data interface{}) {
		img, ok := data.(image.Image)
		if !ok {
			return
		}
		mw.handle(mw.display.SetOverlayImage(img))
		mw.updateStatus("Overlay: " + filepath.Base(mw.session.OverlayPath()))
		mw.watchOverlay(mw.session.OverlayPath())
	})

	mw.session.On(app.EventClosed, func(interface{}) {
		mw.stopWatcher()
		mw.display.ResetCaches()
		mw.display.DisplayTextMessage(placeholder)
		mw.SetTitle(appTitle)
		mw.zoomLabel.SetText("")
		mw.updateStatus("Ready")
	})

	mw.view.OnResize(func(fyne.Size) {
		mw.handle(mw.display.NotifyResized())
	})
	mw.view.OnWheel(func(zoomIn bool) {
		if zoomIn {
			mw.onZoomIn()
		} else {
			mw.onZoomOut()
		}
	})

	mw.display.OnZoomChange(func(factor float64, fit bool) {
		text := fmt.Sprintf("%.0f%%", factor*100)
		if fit {
			text += " (fit)"
		}
		mw.zoomLabel.SetText(text)
		if mw.fitToWindowItem.Checked != fit {
			mw.fitToWindowItem.Checked = fit
			mw.refreshMenu()
		}
	})
}

// watchOverlay follows the overlay file so an external segmentation run
// updating it is shown without reopening.
func (mw *MainWindow) watchOverlay(path string) {
	if !mw.cfg.WatchOverlay || path == "" {
		return
	}
	if mw.watcher != nil && mw.watcher.Path() == absPath(path) {
		return
	}
	mw.stopWatcher()

	w, err := app.NewOverlayWatcher(path, 0, mw.logger.With("component", "watcher"))
	if err != nil {
		mw.logger.Warn("overlay watch unavailable", "path", path, "error", err)
		return
	}
	w.OnChange(func(string) {
		fyne.Do(mw.onReloadOverlay)
	})
	w.Start()
	mw.watcher = w
}

func (mw *MainWindow) stopWatcher() {
	if mw.watcher == nil {
		return
	}
	if err := mw.watcher.Stop(); err != nil {
		mw.logger.Debug("stop watcher", "error", err)
	}
	mw.watcher = nil
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// handle reports a failed operation. The view keeps what it showed before.
func (mw *MainWindow) handle(err error) {
	if err == nil {
		return
	}
	mw.logger.Error("display operation failed", "error", err)
	mw.updateStatus("Error: " + err.Error())
	dialog.ShowError(err, mw.Window)
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) refreshMenu() {
	if menu := mw.MainMenu(); menu != nil {
		menu.Refresh()
	}
}

// OpenBase loads the base image, reporting failures in a dialog.
func (mw *MainWindow) OpenBase(path string) {
	if err := mw.session.LoadBase(path); err != nil {
		mw.handle(err)
		return
	}
	mw.prefs.SetString(prefs.KeyLastBase, path)
	mw.saveLastDir(path)
}

// OpenOverlay loads the overlay image, reporting failures in a dialog.
func (mw *MainWindow) OpenOverlay(path string) {
	if err := mw.session.LoadOverlay(path); err != nil {
		mw.handle(err)
		return
	}
	mw.prefs.SetString(prefs.KeyLastOverlay, path)
	mw.saveLastDir(path)
}

// RestoreLast reopens the images from the previous run, if any.
func (mw *MainWindow) RestoreLast() {
	if path := mw.prefs.String(prefs.KeyLastBase); path != "" {
		if err := mw.session.LoadBase(path); err != nil {
			mw.logger.Warn("restore base", "path", path, "error", err)
			return
		}
	}
	if path := mw.prefs.String(prefs.KeyLastOverlay); path != "" {
		if err := mw.session.LoadOverlay(path); err != nil {
			mw.logger.Warn("restore overlay", "path", path, "error", err)
		}
	}
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
}

func (mw *MainWindow) chooseImage(overlay bool) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		if overlay {
			mw.OpenOverlay(path)
		} else {
			mw.OpenBase(path)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(vimage.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// Action handlers

func (mw *MainWindow) onZoomIn() {
	mw.handle(mw.display.IncreaseZoom())
}

func (mw *MainWindow) onZoomOut() {
	mw.handle(mw.display.DecreaseZoom())
}

func (mw *MainWindow) onFitToWindow() {
	mw.handle(mw.display.FitToWindow())
}

func (mw *MainWindow) onActualSize() {
	mw.handle(mw.display.ActualSize())
}

func (mw *MainWindow) onCompositeChanged(enabled bool) {
	mw.handle(mw.display.SetCompositeEnabled(enabled))
	mw.prefs.SetBool(prefs.KeyComposite, enabled)
	if mw.compositeItem != nil && mw.compositeItem.Checked != enabled {
		mw.compositeItem.Checked = enabled
		mw.refreshMenu()
	}
}

func (mw *MainWindow) onBlendSelected(name string) {
	mode, err := vimage.ParseBlendMode(name)
	if err != nil {
		mw.handle(err)
		return
	}
	mw.handle(mw.display.SetBlendMode(mode))
	mw.prefs.SetString(prefs.KeyBlendMode, mode.String())
}

func (mw *MainWindow) onReloadOverlay() {
	if err := mw.session.ReloadOverlay(); err != nil {
		// A half-written file is common while a segmentation run is active.
		mw.logger.Warn("overlay reload failed", "error", err)
		mw.updateStatus("Overlay reload failed: " + err.Error())
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Views EM/MPM segmentation results blended over the source image.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

func (mw *MainWindow) onClosed() {
	mw.stopWatcher()
	size := mw.Canvas().Size()
	mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
	mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
	if err := mw.prefs.SaveIfChanged(); err != nil {
		mw.logger.Warn("save preferences", "error", err)
	}
}

// Display returns the window's display engine.
func (mw *MainWindow) Display() *display.Display {
	return mw.display
}
