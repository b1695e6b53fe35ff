package config

import (
	"os"
	"path/filepath"
	"testing"

	vimage "emmpm-viewer/internal/image"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []float64{0.05, 0.1, 0.25, 0.5, 1.0, 1.5, 2.0, 4.0, 6.0}, cfg.ZoomFactors)
	assert.Equal(t, vimage.BlendExclusion, cfg.BlendMode)

	tbl, err := cfg.ZoomTable()
	require.NoError(t, err)
	assert.Equal(t, 1.0, tbl.Factor(tbl.DefaultIndex()))

	base, overlay, err := cfg.Qualities()
	require.NoError(t, err)
	assert.Equal(t, vimage.QualitySmooth, base)
	assert.Equal(t, vimage.QualityFast, overlay)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.json")
	data := `{"blend_mode": "multiply", "composite_enabled": true, "zoom_factors": [0.5, 1, 2], "default_zoom_index": 1}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, vimage.BlendMultiply, cfg.BlendMode)
	assert.True(t, cfg.CompositeEnabled)
	assert.Equal(t, []float64{0.5, 1, 2}, cfg.ZoomFactors)
	assert.Equal(t, "smooth", cfg.BaseQuality, "unset fields keep defaults")
}

func TestValidateRejectsUndefinedBlendMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlendMode = vimage.BlendMode(9)
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, vimage.ErrInvalidBlendMode)
	assert.Error(t, cfg.Save(filepath.Join(t.TempDir(), "viewer.json")))
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad blend":    `{"blend_mode": "dissolve"}`,
		"bad table":    `{"zoom_factors": [2, 1]}`,
		"bad quality":  `{"overlay_quality": "lanczos"}`,
		"unknown key":  `{"zoom": 3}`,
		"not json":     `zoom=3`,
		"bad loglevel": `{"log_level": "loud"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "viewer.json")
			require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
			cfg, err := Load(path)
			assert.Error(t, err)
			assert.Equal(t, DefaultConfig(), cfg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "viewer.json")
	cfg := DefaultConfig()
	cfg.BlendMode = vimage.BlendScreen
	cfg.FitMargin = 8
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	cfg.MaxCanvasPixels = 0
	assert.Error(t, cfg.Save(path))
}
