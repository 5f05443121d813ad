package processing

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/image-cropper/pkg/mask"
)

// maxDownloadSize caps remote image downloads
const maxDownloadSize = 64 << 20

// MaskLayerColor dims everything outside the crop in previews
var MaskLayerColor = color.NRGBA{0, 0, 0, 178}

// Processor handles image I/O around the crop engine
type Processor struct {
	client *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{client: &http.Client{Timeout: 30 * time.Second}}
}

// FetchURL downloads the encoded bytes of a remote image
func (p *Processor) FetchURL(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Image-Cropper/1.0 (+https://github.com/menta2k/image-cropper)")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("image exceeds %d bytes", maxDownloadSize)
	}

	log.Ctx(ctx).Debug().Str("url", imageURL).Int("bytes", len(data)).Msg("downloaded image")
	return data, nil
}

// ReadSource returns the encoded bytes of a file path or http(s) URL
func (p *Processor) ReadSource(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.FetchURL(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// FormatFromPath maps a file extension to an output format
func FormatFromPath(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return "png"
	case "webp":
		return "webp"
	case "jpg", "jpeg":
		return "jpg"
	}
	return ""
}

// Encode writes img to w in the given format. JPEG has no alpha channel, so
// masked crops are flattened onto background first
func (p *Processor) Encode(w io.Writer, img image.Image, format string, quality int, lossless bool, background color.Color) error {
	switch strings.ToLower(format) {
	case "webp":
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(w, img, opts)
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	case "jpg", "jpeg", "":
		if background != nil {
			b := img.Bounds()
			img = imaging.Overlay(imaging.New(b.Dx(), b.Dy(), background), img, image.Point{}, 1)
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := p.Encode(f, img, format, quality, lossless, color.White); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CreateDebugOverlay renders img with the area outside crop dimmed by
// MaskLayerColor and the crop boundary outlined. When path is not nil the
// boundary follows it; path is expressed in the pixel space of img
func (p *Processor) CreateDebugOverlay(img image.Image, crop image.Rectangle, path *mask.Path) *image.NRGBA {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	w, h := b.Dx(), b.Dy()

	gold := color.NRGBA{255, 204, 0, 255}
	blue := color.NRGBA{0, 170, 255, 255}
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	// inside is 255 where the crop keeps pixels
	var inside *image.Alpha
	if path != nil && !path.IsEmpty() {
		inside = path.Rasterize(identity, w, h)
	} else {
		inside = image.NewAlpha(b)
		draw.Draw(inside, crop, image.Opaque, image.Point{}, draw.Src)
	}

	layer := image.NewUniform(MaskLayerColor)
	outside := &invertedAlpha{inside}
	draw.DrawMask(nrgba, b, layer, image.Point{}, outside, image.Point{}, draw.Over)

	drawBox(nrgba, crop, gold, stroke)

	// image center marker
	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, blue)
	drawVLine(nrgba, ix, iy-6, iy+6, blue)

	return nrgba
}

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// invertedAlpha is the complement of a coverage mask
type invertedAlpha struct{ m *image.Alpha }

func (a *invertedAlpha) ColorModel() color.Model { return color.AlphaModel }
func (a *invertedAlpha) Bounds() image.Rectangle { return a.m.Bounds() }
func (a *invertedAlpha) At(x, y int) color.Color {
	return color.Alpha{A: 255 - a.m.AlphaAt(x, y).A}
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if r.Empty() {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
