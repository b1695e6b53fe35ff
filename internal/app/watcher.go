package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"emmpm-viewer/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long the overlay file must stay quiet before a
// change is reported. Segmentation tools tend to write in several chunks.
const DefaultSettleDelay = 250 * time.Millisecond

// OverlayWatcher watches an overlay file and triggers a callback when it has
// been rewritten. The parent directory is watched so that atomic
// write-and-rename updates are seen too.
type OverlayWatcher struct {
	path     string
	settle   time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(path string) // Called from the watcher goroutine

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewOverlayWatcher creates a watcher for path. A non-positive settle delay
// selects DefaultSettleDelay.
func NewOverlayWatcher(path string, settle time.Duration, logger *slog.Logger) (*OverlayWatcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if realPath, err := filepath.EvalSymlinks(abs); err == nil {
		abs = realPath
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &OverlayWatcher{
		path:    abs,
		settle:  settle,
		watcher: w,
		logger:  logger,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// OnChange sets the callback invoked after the file settles. The callback
// runs on a background goroutine; UI hosts must hop to their main thread.
func (w *OverlayWatcher) OnChange(callback func(path string)) {
	w.onChange = callback
}

// Path returns the watched file.
func (w *OverlayWatcher) Path() string {
	return w.path
}

// Start begins watching in a background goroutine. Calls after the first,
// or after Stop, do nothing.
func (w *OverlayWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	w.logger.Debug("watching overlay", "path", w.path)
	go w.watchLoop()
}

// Stop ends the watch and waits for the goroutine, if one was started, to
// exit. It is safe to call more than once.
func (w *OverlayWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.stopCh)
	err := w.watcher.Close()
	if started {
		<-w.done
	}
	return err
}

func (w *OverlayWatcher) watchLoop() {
	defer close(w.done)

	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("overlay event", "op", ev.Op.String())
			timer.Reset(w.settle)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("overlay watcher error", "error", err)
		case <-timer.C:
			if _, err := os.Stat(w.path); err != nil {
				// Mid-rename; the create event re-arms the timer.
				continue
			}
			if w.onChange != nil {
				w.onChange(w.path)
			}
		}
	}
}

func (w *OverlayWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
