package display

import (
	"fmt"
	"log/slog"

	"emmpm-viewer/internal/config"
	vimage "emmpm-viewer/internal/image"
)

// OptionsFromConfig translates a validated config into display options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) (Options, error) {
	table, err := cfg.ZoomTable()
	if err != nil {
		return Options{}, fmt.Errorf("zoom table: %w", err)
	}
	base, overlay, err := cfg.Qualities()
	if err != nil {
		return Options{}, err
	}
	margin := cfg.FitMargin
	return Options{
		Table:            table,
		FitMargin:        &margin,
		Renderer:         vimage.NewRenderer(base, overlay, cfg.MaxCanvasPixels),
		BlendMode:        cfg.BlendMode,
		CompositeEnabled: cfg.CompositeEnabled,
		Logger:           logger,
	}, nil
}
