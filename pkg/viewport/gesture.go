package viewport

import (
	"github.com/menta2k/image-cropper/pkg/types"
)

// ZoomAbout changes the zoom scale, clamped to bounds, keeping the image
// point under anchor (viewport coordinates) stationary
func (s State) ZoomAbout(scale float64, anchor types.Point, bounds ScaleBounds) State {
	scale = bounds.Clamp(scale)
	if !(s.ZoomScale > 0) {
		s.ZoomScale = scale
		return s
	}
	k := scale / s.ZoomScale
	s.ContentOffset = anchor.Add(s.ContentOffset).Mul(k).Sub(anchor)
	s.ZoomScale = scale
	return s
}

// PanBy moves the content by a drag of (dx, dy) layout units
func (s State) PanBy(dx, dy float64) State {
	s.ContentOffset = s.ContentOffset.Sub(types.Point{X: dx, Y: dy})
	return s
}

// ClampOffset returns the content offset nearest to s.ContentOffset that keeps
// the displayed image covering cover (typically the mask rect). Along an axis
// where the scaled image is smaller than cover, the image is centered on it
func ClampOffset(s State, imageSize types.Size, cover types.Rect) types.Point {
	w := imageSize.W * s.ZoomScale
	h := imageSize.H * s.ZoomScale
	return types.Point{
		X: clampAxis(s.ContentOffset.X, w, cover.X, cover.W),
		Y: clampAxis(s.ContentOffset.Y, h, cover.Y, cover.H),
	}
}

// clampAxis keeps [-offset, -offset+extent] around [lo, lo+length]
func clampAxis(offset, extent, lo, length float64) float64 {
	if extent < length {
		return -(lo + (length-extent)/2)
	}
	return clamp(offset, -lo, extent-lo-length)
}
