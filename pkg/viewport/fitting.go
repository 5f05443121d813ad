// Package viewport computes the zoom and pan geometry of an image shown
// through a bounded viewport and maps points between the viewport and the
// image's upright pixel grid.
//
// All functions are pure. State values are owned by a single writer; the
// package does no locking.
package viewport

import (
	"math"

	"github.com/menta2k/image-cropper/pkg/types"
)

// ScaleBounds holds the zoom limits for one image/viewport pair
type ScaleBounds struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Initial float64 `json:"initial"`
}

// Clamp limits scale to the bounds
func (b ScaleBounds) Clamp(scale float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, scale))
}

// ComputeScaleBounds returns the zoom limits for an image of imageSize pixels
// shown in a viewport of viewportSize layout units.
//
// The minimum fits (aspectFill=false) or fills (aspectFill=true) the viewport.
// The maximum maps one image pixel to one device pixel but never drops below
// the minimum. Degenerate sizes yield a unit scale
func ComputeScaleBounds(imageSize, viewportSize types.Size, aspectFill bool, pixelDensity float64) ScaleBounds {
	if imageSize.IsEmpty() || viewportSize.IsEmpty() {
		return ScaleBounds{Min: 1, Max: 1, Initial: 1}
	}
	if !(pixelDensity > 0) {
		pixelDensity = 1
	}

	sx := viewportSize.W / imageSize.W
	sy := viewportSize.H / imageSize.H

	minScale := math.Min(sx, sy)
	if aspectFill {
		minScale = math.Max(sx, sy)
	}

	maxScale := math.Max(pixelDensity, minScale)

	return ScaleBounds{Min: minScale, Max: maxScale, Initial: minScale}
}

// ComputeInitialOffset returns the content offset that centers an image
// scaled by scale inside the viewport. Along an axis where the scaled image is
// smaller than the viewport the offset is negative
func ComputeInitialOffset(imageSize, viewportSize types.Size, scale float64) types.Point {
	if imageSize.IsEmpty() || viewportSize.IsEmpty() || !(scale > 0) {
		return types.Point{}
	}
	return types.Point{
		X: (imageSize.W*scale - viewportSize.W) / 2,
		Y: (imageSize.H*scale - viewportSize.H) / 2,
	}
}
