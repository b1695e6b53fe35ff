// Package app provides the viewer session: the loaded rasters, their source
// paths, and the events hosts subscribe to.
package app

import (
	"errors"
	"fmt"
	goimage "image"
	"log/slog"
	"sync"

	"emmpm-viewer/internal/image"
	"emmpm-viewer/internal/logging"
)

// ErrNoOverlay is returned by ReloadOverlay when no overlay path is set.
var ErrNoOverlay = errors.New("no overlay loaded")

// Session holds the base raster, the overlay (segmentation labels) and the
// paths they were read from.
type Session struct {
	mu sync.RWMutex

	basePath    string
	overlayPath string
	base        goimage.Image
	overlay     goimage.Image

	logger *slog.Logger

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies session events.
type EventType int

const (
	// EventBaseLoaded carries the new base image.
	EventBaseLoaded EventType = iota
	// EventOverlayUpdated carries the new overlay image.
	EventOverlayUpdated
	// EventClosed carries nil.
	EventClosed
)

// String returns the event name.
func (e EventType) String() string {
	switch e {
	case EventBaseLoaded:
		return "base_loaded"
	case EventOverlayUpdated:
		return "overlay_updated"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewSession creates an empty session. A nil logger discards.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{
		logger:    logger,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type. Listeners run on
// the caller's goroutine.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// LoadBase reads the base image from path. The overlay is kept.
func (s *Session) LoadBase(path string) error {
	img, err := image.Load(path)
	if err != nil {
		return fmt.Errorf("load base: %w", err)
	}

	s.mu.Lock()
	s.basePath = path
	s.base = img
	s.mu.Unlock()

	b := img.Bounds()
	s.logger.Info("base loaded", "path", path, "width", b.Dx(), "height", b.Dy())
	s.Emit(EventBaseLoaded, img)
	return nil
}

// LoadOverlay reads the overlay image from path.
func (s *Session) LoadOverlay(path string) error {
	img, err := image.Load(path)
	if err != nil {
		return fmt.Errorf("load overlay: %w", err)
	}

	s.mu.Lock()
	s.overlayPath = path
	s.overlay = img
	s.mu.Unlock()

	s.logger.Info("overlay loaded", "path", path)
	s.Emit(EventOverlayUpdated, img)
	return nil
}

// ReloadOverlay re-reads the overlay from its current path. On failure the
// previous overlay stays.
func (s *Session) ReloadOverlay() error {
	path := s.OverlayPath()
	if path == "" {
		return ErrNoOverlay
	}
	return s.LoadOverlay(path)
}

// Close drops both images and their paths.
func (s *Session) Close() {
	s.mu.Lock()
	s.basePath, s.overlayPath = "", ""
	s.base, s.overlay = nil, nil
	s.mu.Unlock()

	s.logger.Info("session closed")
	s.Emit(EventClosed, nil)
}

// Base returns the base image, or nil.
func (s *Session) Base() goimage.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Overlay returns the overlay image, or nil.
func (s *Session) Overlay() goimage.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlay
}

// BasePath returns the path the base was read from.
func (s *Session) BasePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.basePath
}

// OverlayPath returns the path the overlay was read from.
func (s *Session) OverlayPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlayPath
}
