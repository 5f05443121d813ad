package cropper

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/orientation"
	"github.com/menta2k/image-cropper/pkg/types"
	"github.com/menta2k/image-cropper/pkg/viewport"
)

// snapTolerance is how close to an integer a coordinate must be to be
// treated as that integer before rounding outwards
const snapTolerance = 1e-6

// Request is an immutable snapshot of everything one resolution needs
type Request struct {
	Source    SourceImage
	Transform orientation.Transform
	Viewport  viewport.State
	Mask      mask.Geometry
}

// SourceRect maps the mask rectangle to upright image pixels using the
// current zoom and offset. The result is clipped to the image
func SourceRect(s viewport.State, imageSize types.Size, maskRect types.Rect) types.Rect {
	return viewport.ViewportRectToImagePixel(maskRect, s, imageSize)
}

// RoundOut converts r to integer pixel bounds without shrinking it: the
// origin is floored and the far corner ceiled, then the result is clipped to
// [0,size]. An edge within snapTolerance of an integer snaps to that integer
// first, so the result may lie inside r by at most snapTolerance per edge
func RoundOut(r types.Rect, size types.PixelSize) image.Rectangle {
	out := image.Rect(
		floorSnap(r.X), floorSnap(r.Y),
		ceilSnap(r.X+r.W), ceilSnap(r.Y+r.H),
	)
	return out.Intersect(image.Rect(0, 0, size.Width, size.Height))
}

func floorSnap(v float64) int {
	if n := math.Round(v); math.Abs(v-n) < snapTolerance {
		return int(n)
	}
	return int(math.Floor(v))
}

func ceilSnap(v float64) int {
	if n := math.Round(v); math.Abs(v-n) < snapTolerance {
		return int(n)
	}
	return int(math.Ceil(v))
}

// Locate returns the pixels a resolution of req would extract, in upright and
// stored-buffer coordinates, without touching the pixel data
func Locate(req Request) (upright, raw image.Rectangle, err error) {
	if err := validateSource(req.Source); err != nil {
		return image.Rectangle{}, image.Rectangle{}, err
	}
	if req.Mask.Rect.IsEmpty() {
		return image.Rectangle{}, image.Rectangle{}, fmt.Errorf("%w: mask rect %v", ErrDegenerateMask, req.Mask.Rect)
	}

	tr := req.Transform
	if tr.Raw != req.Source.RawSize() {
		return image.Rectangle{}, image.Rectangle{}, fmt.Errorf("transform built for %v, source is %v", tr.Raw, req.Source.RawSize())
	}

	// 1. mask rect -> upright pixels
	ur := SourceRect(req.Viewport, tr.Upright.Size(), req.Mask.Rect)
	if ur.IsEmpty() {
		return image.Rectangle{}, image.Rectangle{}, fmt.Errorf("%w: mask %v does not overlap the image", ErrDegenerateMask, req.Mask.Rect)
	}

	// 2. upright -> stored buffer
	rawF := tr.RectToRaw(ur)

	// 3. never shrink the selection
	raw = RoundOut(rawF, tr.Raw)
	if raw.Empty() {
		return image.Rectangle{}, image.Rectangle{}, fmt.Errorf("%w: source rect %v is empty", ErrDegenerateMask, rawF)
	}
	upright = RoundOut(tr.RectToUpright(types.Rect{
		X: float64(raw.Min.X),
		Y: float64(raw.Min.Y),
		W: float64(raw.Dx()),
		H: float64(raw.Dy()),
	}), tr.Upright)
	return upright, raw, nil
}

// Resolve computes the source rectangle for req and extracts it at native
// resolution, upright, with the mask path applied as alpha when it is not
// rectangular. It returns ctx.Err() if cancelled before finishing
func Resolve(ctx context.Context, req Request) (*Result, error) {
	uprightRect, raw, err := Locate(req)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. extract and orient in one pass
	out, err := extract(ctx, req.Source.Image, req.Transform, raw, uprightRect)
	if err != nil {
		return nil, err
	}

	// 5. alpha mask for non-rectangular paths
	masked := req.Mask.NeedsAlpha()
	if masked {
		m := viewportToTile(req.Viewport, uprightRect)
		alpha := req.Mask.Path.Rasterize(m, out.Rect.Dx(), out.Rect.Dy())
		if err := applyAlpha(ctx, out, alpha); err != nil {
			return nil, err
		}
	}

	// 6. package
	return &Result{
		Image:      out,
		Width:      out.Rect.Dx(),
		Height:     out.Rect.Dy(),
		SourceRect: uprightRect,
		RawRect:    raw,
		Masked:     masked,
	}, nil
}

// viewportToTile maps viewport coordinates to pixel coordinates inside the
// extracted tile whose upright bounds are r
func viewportToTile(s viewport.State, r image.Rectangle) f64.Aff3 {
	m := viewport.ToImage(s)
	m[2] -= float64(r.Min.X)
	m[5] -= float64(r.Min.Y)
	return m
}

// Upright returns the whole source as an upright image
func Upright(ctx context.Context, src SourceImage) (*image.NRGBA, error) {
	if err := validateSource(src); err != nil {
		return nil, err
	}
	tr := orientation.Resolve(ctx, src.Orientation, src.RawSize())
	raw := image.Rect(0, 0, tr.Raw.Width, tr.Raw.Height)
	return extract(ctx, src.Image, tr, raw, image.Rect(0, 0, tr.Upright.Width, tr.Upright.Height))
}
