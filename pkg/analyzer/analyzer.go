package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/bep/imagemeta"
	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/orientation"
)

// ErrUnsupportedFormat is returned for images whose codec is not enabled
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageAnalyzer decodes photos into crop sources, reading the EXIF
// orientation alongside the pixels
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: []string{"jpeg", "png", "webp"},
			MinImageSize:     1,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// LoadFile reads and decodes the image at path
func (a *ImageAnalyzer) LoadFile(ctx context.Context, path string) (cropper.SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cropper.SourceImage{}, fmt.Errorf("failed to read image file: %w", err)
	}
	return a.Decode(ctx, data)
}

// Decode decodes an encoded image and its orientation. A missing or unreadable
// orientation tag is treated as normal
func (a *ImageAnalyzer) Decode(ctx context.Context, data []byte) (cropper.SourceImage, error) {
	img, format, err := decodePixels(data)
	if err != nil {
		return cropper.SourceImage{}, err
	}
	if !a.isFormatSupported(format) {
		return cropper.SourceImage{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	tag, err := ReadOrientation(data)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("format", format).Msg("no usable orientation tag")
		tag = orientation.Normal
	}

	log.Ctx(ctx).Debug().
		Str("format", format).
		Stringer("orientation", tag).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("decoded image")

	return cropper.SourceImage{Image: img, Orientation: tag}, nil
}

func decodePixels(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}

	// extended WebP features the x/image decoder rejects
	if DetectFormat(data) == "webp" {
		if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return img, "webp", nil
		}
	}
	return nil, "", fmt.Errorf("failed to decode image: %w", err)
}

// DetectFormat sniffs the container format from the leading bytes. It
// returns an empty string for unknown data
func DetectFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp"
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "tiff"
	}
	return ""
}

var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
	"tiff": imagemeta.TIFF,
}

// ReadOrientation returns the EXIF orientation stored in data, or Normal if
// the image carries none
func ReadOrientation(data []byte) (orientation.Tag, error) {
	format, ok := metaFormats[DetectFormat(data)]
	if !ok {
		return orientation.Normal, ErrUnsupportedFormat
	}

	tag := orientation.Normal
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if ti.Tag != "Orientation" || !strings.HasPrefix(ti.Namespace, "IFD0") {
				return nil
			}
			if v, ok := ti.Value.(uint16); ok {
				tag = orientation.Tag(v)
			}
			return imagemeta.ErrStopWalking
		},
	})
	if err != nil {
		return orientation.Normal, fmt.Errorf("failed to read metadata: %w", err)
	}
	return tag, nil
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(src cropper.SourceImage) ImageInfo {
	tr := orientation.Resolve(context.Background(), src.Orientation, src.RawSize())
	width, height := tr.Upright.Width, tr.Upright.Height

	info := ImageInfo{
		Width:       width,
		Height:      height,
		Area:        width * height,
		Orientation: tr.Tag,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ImageInfo contains basic image metadata in upright orientation
type ImageInfo struct {
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	AspectRatio float64         `json:"aspect_ratio"`
	Area        int             `json:"area"`
	Orientation orientation.Tag `json:"orientation"`
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(src cropper.SourceImage) error {
	if !src.Valid() {
		return cropper.ErrInvalidSource
	}
	size := src.RawSize()
	if size.Width < a.config.MinImageSize || size.Height < a.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %v (minimum: %d)",
			cropper.ErrInvalidSource, size, a.config.MinImageSize)
	}
	return nil
}
