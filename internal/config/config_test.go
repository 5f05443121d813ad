package config

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"

	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	c := qt.New(t)
	c.Assert(Default().Validate(), qt.IsNil)
}

func TestSaveAndLoad(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Cropper.Mode = mask.Custom
	cfg.Cropper.CustomMask = []types.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.2}, {X: 0.5, Y: 0.9}}
	cfg.Cropper.FixedSize = &types.PixelSize{Width: 512, Height: 512}
	cfg.Output.DefaultFormat = "webp"

	c.Assert(cfg.SaveToFile(path), qt.IsNil)

	loaded, err := LoadFromFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(loaded, qt.CmpEquals(), cfg)

	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, `"mode": "custom"`)
}

func TestLoadKeepsDefaults(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "config.json")
	c.Assert(os.WriteFile(path, []byte(`{"cropper": {"mode": "circle"}}`), 0o644), qt.IsNil)

	cfg, err := LoadFromFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Cropper.Mode, qt.Equals, mask.Circle)

	want := Default()
	want.Cropper.Mode = mask.Circle
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadFromFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.json"))
	c.Assert(err, qt.ErrorMatches, "failed to read config file: .*")

	bad := filepath.Join(dir, "bad.json")
	c.Assert(os.WriteFile(bad, []byte(`{"cropper": {"mode": "hexagon"}}`), 0o644), qt.IsNil)
	_, err = LoadFromFile(bad)
	c.Assert(err, qt.ErrorMatches, `failed to parse config file: .*unknown crop mode "hexagon".*`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"margin", func(c *Config) { c.Cropper.MarginFactor = 1.5 }, "cropper.margin_factor.*"},
		{"fixed size", func(c *Config) { c.Cropper.FixedSize = &types.PixelSize{Width: 10} }, "cropper.fixed_size.*"},
		{"custom without polygon", func(c *Config) { c.Cropper.Mode = mask.Custom }, "cropper.custom_mask.*"},
		{"viewport", func(c *Config) { c.Viewport.Width = 0 }, "viewport.width.*"},
		{"density", func(c *Config) { c.Viewport.PixelDensity = 0 }, "viewport.pixel_density.*"},
		{"quality", func(c *Config) { c.Output.Quality = 0 }, "output.quality.*"},
		{"format", func(c *Config) { c.Output.DefaultFormat = "gif" }, `output.default_format "gif".*`},
		{"formats", func(c *Config) { c.Analyzer.SupportedFormats = nil }, "analyzer.supported_formats.*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			cfg := Default()
			tt.modify(cfg)
			c.Assert(cfg.Validate(), qt.ErrorMatches, tt.want)
		})
	}
}

func TestMaskSupplier(t *testing.T) {
	c := qt.New(t)
	cfg := Default()
	c.Assert(cfg.MaskSupplier(), qt.IsNil)

	cfg.Cropper.Mode = mask.Custom
	cfg.Cropper.CustomMask = []types.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	s := cfg.MaskSupplier()
	c.Assert(s, qt.Not(qt.IsNil))
	c.Assert(s.CustomMaskRect(types.Size{W: 200, H: 100}), qt.Equals, types.Rect{W: 200, H: 100})
}

func TestGetConfigPath(t *testing.T) {
	c := qt.New(t)
	c.Assert(filepath.Base(GetConfigPath()), qt.Equals, "config.json")
}
