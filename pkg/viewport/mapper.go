package viewport

import (
	"golang.org/x/image/math/f64"

	"github.com/menta2k/image-cropper/pkg/types"
)

// State is the live zoom/pan state of the viewport
type State struct {
	Size          types.Size  `json:"size"`
	ZoomScale     float64     `json:"zoom_scale"`
	ContentOffset types.Point `json:"content_offset"`
	// PixelDensity maps layout units to physical pixels
	PixelDensity float64 `json:"pixel_density"`
}

// InitialState returns the state a freshly laid out viewport shows: the
// minimum scale with the image centered
func InitialState(imageSize, viewportSize types.Size, aspectFill bool, pixelDensity float64) (State, ScaleBounds) {
	bounds := ComputeScaleBounds(imageSize, viewportSize, aspectFill, pixelDensity)
	return State{
		Size:          viewportSize,
		ZoomScale:     bounds.Initial,
		ContentOffset: ComputeInitialOffset(imageSize, viewportSize, bounds.Initial),
		PixelDensity:  pixelDensity,
	}, bounds
}

// ViewportToImagePixel maps a viewport point to upright image pixel space,
// clamped to the image bounds
func ViewportToImagePixel(p types.Point, s State, imageSize types.Size) types.Point {
	if !(s.ZoomScale > 0) {
		return types.Point{}
	}
	q := p.Add(s.ContentOffset).Mul(1 / s.ZoomScale)
	return types.Point{
		X: clamp(q.X, 0, imageSize.W),
		Y: clamp(q.Y, 0, imageSize.H),
	}
}

// ToImage returns the affine map from viewport coordinates to upright image
// pixels, without clamping
func ToImage(s State) f64.Aff3 {
	if !(s.ZoomScale > 0) {
		return f64.Aff3{1, 0, 0, 0, 1, 0}
	}
	k := 1 / s.ZoomScale
	return f64.Aff3{
		k, 0, s.ContentOffset.X * k,
		0, k, s.ContentOffset.Y * k,
	}
}

// ImagePixelToViewport maps an upright image pixel coordinate to the viewport
func ImagePixelToViewport(p types.Point, s State) types.Point {
	return p.Mul(s.ZoomScale).Sub(s.ContentOffset)
}

// ViewportRectToImagePixel maps a viewport rectangle to upright image pixel
// space. Parts of the rectangle outside the image are clipped away
func ViewportRectToImagePixel(r types.Rect, s State, imageSize types.Size) types.Rect {
	return types.RectFromPoints(
		ViewportToImagePixel(r.Min(), s, imageSize),
		ViewportToImagePixel(r.Max(), s, imageSize),
	)
}

// ImageViewFrame returns the displayed image rectangle in viewport coordinates
func ImageViewFrame(s State, imageSize types.Size) types.Rect {
	return types.Rect{
		X: -s.ContentOffset.X,
		Y: -s.ContentOffset.Y,
		W: imageSize.W * s.ZoomScale,
		H: imageSize.H * s.ZoomScale,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
