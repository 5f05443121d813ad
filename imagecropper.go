// Package imagecropper crops photos the way an interactive crop screen does:
// the image is shown in a zoomable, pannable viewport, a circle, square or
// custom mask marks the region to keep, and confirming the crop extracts that
// region from the original pixels at full resolution.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		imagecropper "github.com/menta2k/image-cropper"
//	)
//
//	func main() {
//		ctx := context.Background()
//		ic := imagecropper.New()
//
//		report, err := ic.CropFile(ctx, "photo.jpg", "photo_square.png", imagecropper.View{})
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("cropped %v from %s", report.SourceRect, report.Input)
//	}
//
// The package consists of these components:
//
//  1. Analyzer (pkg/analyzer): decodes images and reads their EXIF orientation
//  2. Orientation (pkg/orientation): maps between stored and upright pixels
//  3. Viewport (pkg/viewport): zoom limits, gestures and coordinate mapping
//  4. Mask (pkg/mask): crop boundary geometry for each crop mode
//  5. Cropper (pkg/cropper): crop sessions and the asynchronous resolver
//  6. Processing (pkg/processing): image I/O and debug previews
package imagecropper

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/types"
	"github.com/menta2k/image-cropper/pkg/viewport"
)

// Version of the image cropper library
const Version = "1.0.0"

// ImageCropper provides a high-level interface over crop sessions
type ImageCropper struct {
	config    *config.Config
	analyzer  *analyzer.ImageAnalyzer
	processor *processing.Processor
}

// New creates a new ImageCropper with default configuration
func New() *ImageCropper {
	return NewWithConfig(config.Default())
}

// NewWithConfig creates a new ImageCropper with custom configuration
func NewWithConfig(cfg *config.Config) *ImageCropper {
	return &ImageCropper{
		config: cfg,
		analyzer: analyzer.NewWithConfig(analyzer.Config{
			SupportedFormats: cfg.Analyzer.SupportedFormats,
			MinImageSize:     cfg.Analyzer.MinImageSize,
		}),
		processor: processing.NewProcessor(),
	}
}

// Config returns the active configuration
func (ic *ImageCropper) Config() *config.Config {
	return ic.config
}

// View positions the image inside the viewport before confirming. The zero
// value keeps the initial fit
type View struct {
	// Zoom multiplies the initial scale; values <= 1 keep the initial scale
	Zoom float64 `json:"zoom,omitempty"`
	// Offset, when set, is the content offset in layout units
	Offset *types.Point `json:"offset,omitempty"`
}

// Report describes a finished crop
type Report struct {
	Input       string             `json:"input"`
	Output      string             `json:"output,omitempty"`
	Info        analyzer.ImageInfo `json:"info"`
	Mode        mask.Mode          `json:"mode"`
	SourceRect  image.Rectangle    `json:"source_rect"`
	RawRect     image.Rectangle    `json:"raw_rect"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Masked      bool               `json:"masked"`
	DebugOutput string             `json:"debug_output,omitempty"`
}

// LoadImage reads a file path or http(s) URL into a crop source
func (ic *ImageCropper) LoadImage(ctx context.Context, source string) (cropper.SourceImage, error) {
	data, err := ic.processor.ReadSource(ctx, source)
	if err != nil {
		return cropper.SourceImage{}, err
	}
	return ic.DecodeImage(ctx, data)
}

// DecodeImage decodes encoded image bytes into a crop source
func (ic *ImageCropper) DecodeImage(ctx context.Context, data []byte) (cropper.SourceImage, error) {
	src, err := ic.analyzer.Decode(ctx, data)
	if err != nil {
		return cropper.SourceImage{}, err
	}
	if err := ic.analyzer.ValidateImage(src); err != nil {
		return cropper.SourceImage{}, err
	}
	return src, nil
}

// GetImageInfo returns upright dimensions and orientation of src
func (ic *ImageCropper) GetImageInfo(src cropper.SourceImage) analyzer.ImageInfo {
	return ic.analyzer.GetImageInfo(src)
}

// SessionOptions converts the configuration into crop session options
func (ic *ImageCropper) SessionOptions() cropper.Options {
	c := ic.config.Cropper
	return cropper.Options{
		CropMode:      c.Mode,
		AspectFill:    c.AspectFill,
		FixedCropSize: c.FixedSize,
		CustomMask:    ic.config.MaskSupplier(),
		MarginFactor:  c.MarginFactor,
		PixelDensity:  ic.config.Viewport.PixelDensity,
	}
}

// NewSession opens a crop session for src laid out in the configured
// viewport, with view applied
func (ic *ImageCropper) NewSession(ctx context.Context, src cropper.SourceImage, view View) (*cropper.Session, error) {
	s := cropper.NewSession(ctx, src, ic.SessionOptions())
	vp := types.Size{W: ic.config.Viewport.Width, H: ic.config.Viewport.Height}
	if err := s.SetViewportSize(vp); err != nil {
		return nil, fmt.Errorf("failed to lay out crop mask: %w", err)
	}

	zoom := view.Zoom
	if zoom <= 0 {
		zoom = ic.config.Viewport.Zoom
	}
	if zoom > 1 {
		if err := s.SetZoomScale(s.ScaleBounds().Initial * zoom); err != nil {
			return nil, err
		}
	}
	if view.Offset != nil {
		if err := s.SetContentOffset(*view.Offset); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Locate returns the region a crop of src would extract without extracting it
func (ic *ImageCropper) Locate(ctx context.Context, src cropper.SourceImage, view View) (*Report, error) {
	s, err := ic.NewSession(ctx, src, view)
	if err != nil {
		return nil, err
	}
	req, err := s.Request()
	if err != nil {
		return nil, err
	}
	upright, raw, err := cropper.Locate(req)
	if err != nil {
		return nil, err
	}
	return &Report{
		Info:       ic.GetImageInfo(src),
		Mode:       req.Mask.Mode,
		SourceRect: upright,
		RawRect:    raw,
		Width:      upright.Dx(),
		Height:     upright.Dy(),
		Masked:     req.Mask.NeedsAlpha(),
	}, nil
}

// Crop confirms a crop of src and waits for the outcome
func (ic *ImageCropper) Crop(ctx context.Context, src cropper.SourceImage, view View) (*cropper.Result, error) {
	s, err := ic.NewSession(ctx, src, view)
	if err != nil {
		return nil, err
	}

	o := s.ConfirmAndWait(ctx)
	switch o.Status {
	case cropper.StatusSucceeded:
		return o.Result, nil
	case cropper.StatusCancelled:
		if err := context.Cause(ctx); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	}
	return nil, fmt.Errorf("crop failed (%s): %w", o.Kind(), o.Err)
}

// CropFile crops the image at input and writes the result to output. The
// output format follows the file extension, falling back to the configured
// default
func (ic *ImageCropper) CropFile(ctx context.Context, input, output string, view View) (*Report, error) {
	src, err := ic.LoadImage(ctx, input)
	if err != nil {
		return nil, err
	}

	res, err := ic.Crop(ctx, src, view)
	if err != nil {
		return nil, err
	}

	out := ic.config.Output
	format := processing.FormatFromPath(output)
	if format == "" {
		format = out.DefaultFormat
	}
	if err := ic.processor.SaveImage(res.Image, output, format, out.Quality, out.Lossless); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("input", input).
		Str("output", output).
		Stringer("rect", res.SourceRect).
		Msg("crop saved")

	return &Report{
		Input:      input,
		Output:     output,
		Info:       ic.GetImageInfo(src),
		Mode:       ic.config.Cropper.Mode,
		SourceRect: res.SourceRect,
		RawRect:    res.RawRect,
		Width:      res.Width,
		Height:     res.Height,
		Masked:     res.Masked,
	}, nil
}

// Encode writes img to w in format, or the configured default format when
// format is empty
func (ic *ImageCropper) Encode(w io.Writer, img image.Image, format string) error {
	out := ic.config.Output
	if format == "" {
		format = out.DefaultFormat
	}
	return ic.processor.Encode(w, img, format, out.Quality, out.Lossless, color.White)
}

// SaveDebugOverlay writes a preview of the upright image with the crop region
// highlighted
func (ic *ImageCropper) SaveDebugOverlay(ctx context.Context, src cropper.SourceImage, view View, path string) error {
	s, err := ic.NewSession(ctx, src, view)
	if err != nil {
		return err
	}
	req, err := s.Request()
	if err != nil {
		return err
	}
	upright, _, err := cropper.Locate(req)
	if err != nil {
		return err
	}

	img, err := cropper.Upright(ctx, src)
	if err != nil {
		return err
	}

	outline := req.Mask.Path.Transform(viewport.ToImage(req.Viewport))
	preview := ic.processor.CreateDebugOverlay(img, upright, outline)
	out := ic.config.Output
	return ic.processor.SaveImage(preview, path, processing.FormatFromPath(path), out.Quality, out.Lossless)
}
