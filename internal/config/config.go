package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Analyzer AnalyzerConfig `json:"analyzer"`
	Cropper  CropperConfig  `json:"cropper"`
	Viewport ViewportConfig `json:"viewport"`
	Output   OutputConfig   `json:"output"`
}

// AnalyzerConfig holds configuration for image decoding
type AnalyzerConfig struct {
	SupportedFormats []string `json:"supported_formats"`
	MinImageSize     int      `json:"min_image_size"`
}

// CropperConfig holds the crop session options
type CropperConfig struct {
	Mode         mask.Mode        `json:"mode"`
	AspectFill   bool             `json:"aspect_fill"`
	MarginFactor float64          `json:"margin_factor"`
	FixedSize    *types.PixelSize `json:"fixed_size,omitempty"`
	// CustomMask is a polygon in normalized viewport coordinates used in
	// custom mode
	CustomMask []types.Point `json:"custom_mask,omitempty"`
}

// ViewportConfig describes the on-screen crop view
type ViewportConfig struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	PixelDensity float64 `json:"pixel_density"`
	Zoom         float64 `json:"zoom"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
	OutputDir     string `json:"output_dir"`
	Prefix        string `json:"prefix"`
	Suffix        string `json:"suffix"`
	Workers       int    `json:"workers"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Analyzer: AnalyzerConfig{
			SupportedFormats: []string{"jpeg", "png", "webp"},
			MinImageSize:     1,
		},
		Cropper: CropperConfig{
			Mode:         mask.Square,
			AspectFill:   true,
			MarginFactor: 1,
		},
		Viewport: ViewportConfig{
			Width:        400,
			Height:       400,
			PixelDensity: 2,
			Zoom:         0,
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			Quality:       90,
			OutputDir:     "./output",
			Suffix:        "_cropped",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Analyzer.MinImageSize < 1 {
		errs = append(errs, errors.New("analyzer.min_image_size must be positive"))
	}
	if len(c.Analyzer.SupportedFormats) == 0 {
		errs = append(errs, errors.New("analyzer.supported_formats cannot be empty"))
	}

	if c.Cropper.MarginFactor < 0 || c.Cropper.MarginFactor > 1 {
		errs = append(errs, errors.New("cropper.margin_factor must be between 0 and 1"))
	}
	if c.Cropper.FixedSize != nil && c.Cropper.FixedSize.IsEmpty() {
		errs = append(errs, errors.New("cropper.fixed_size must have positive dimensions"))
	}
	if c.Cropper.Mode == mask.Custom && len(c.Cropper.CustomMask) < 3 {
		errs = append(errs, errors.New("cropper.custom_mask needs at least 3 points in custom mode"))
	}

	if !(c.Viewport.Width > 0) || !(c.Viewport.Height > 0) {
		errs = append(errs, errors.New("viewport.width and viewport.height must be positive"))
	}
	if !(c.Viewport.PixelDensity > 0) {
		errs = append(errs, errors.New("viewport.pixel_density must be positive"))
	}
	if c.Viewport.Zoom < 0 {
		errs = append(errs, errors.New("viewport.zoom cannot be negative"))
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		errs = append(errs, errors.New("output.quality must be between 1 and 100"))
	}
	switch c.Output.DefaultFormat {
	case "png", "jpg", "jpeg", "webp":
	default:
		errs = append(errs, fmt.Errorf("output.default_format %q is not supported", c.Output.DefaultFormat))
	}
	if c.Output.Workers < 0 {
		errs = append(errs, errors.New("output.workers cannot be negative"))
	}

	return errors.Join(errs...)
}

// MaskSupplier returns the custom mask supplier, or nil outside custom mode
func (c *Config) MaskSupplier() mask.Supplier {
	if c.Cropper.Mode != mask.Custom || len(c.Cropper.CustomMask) == 0 {
		return nil
	}
	return mask.PolygonSupplier{Points: c.Cropper.CustomMask}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-cropper", "config.json")
}
