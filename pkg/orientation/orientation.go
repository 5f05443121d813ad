// Package orientation maps between a stored pixel buffer and its upright
// presentation for the eight EXIF orientation tags.
//
// The package never copies pixels. It supplies affine matrices so that a
// consumer can read upright pixels straight out of the stored buffer.
package orientation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/image-cropper/pkg/types"
)

// ErrUnsupported is returned for tags outside the EXIF 1..8 range.
var ErrUnsupported = errors.New("unsupported orientation")

// Tag is an EXIF orientation value. Names describe how the stored buffer
// differs from the upright image.
type Tag uint16

const (
	Normal     Tag = 1
	FlipH      Tag = 2
	Rotate180  Tag = 3
	FlipV      Tag = 4
	Transpose  Tag = 5
	Rotate270  Tag = 6 // displayed by rotating 90° clockwise
	Transverse Tag = 7
	Rotate90   Tag = 8 // displayed by rotating 90° counter-clockwise
)

// Tags lists every supported tag in EXIF order.
var Tags = []Tag{Normal, FlipH, Rotate180, FlipV, Transpose, Rotate270, Transverse, Rotate90}

// entry describes the raw->upright map for one tag.
//
//	x' = a*x + b*y + tw.X*W + tw.Y*H
//	y' = d*x + e*y + th.X*W + th.Y*H
//
// where W and H are the raw buffer dimensions.
type entry struct {
	name       string
	a, b, d, e float64
	tx, ty     [2]float64
	swap       bool
}

var table = map[Tag]entry{
	Normal:     {name: "normal", a: 1, e: 1},
	FlipH:      {name: "flip-h", a: -1, e: 1, tx: [2]float64{1, 0}},
	Rotate180:  {name: "rotate-180", a: -1, e: -1, tx: [2]float64{1, 0}, ty: [2]float64{0, 1}},
	FlipV:      {name: "flip-v", a: 1, e: -1, ty: [2]float64{0, 1}},
	Transpose:  {name: "transpose", b: 1, d: 1, swap: true},
	Rotate270:  {name: "rotate-270", b: -1, d: 1, tx: [2]float64{0, 1}, swap: true},
	Transverse: {name: "transverse", b: -1, d: -1, tx: [2]float64{0, 1}, ty: [2]float64{1, 0}, swap: true},
	Rotate90:   {name: "rotate-90", b: 1, d: -1, ty: [2]float64{1, 0}, swap: true},
}

func (t Tag) String() string {
	if e, ok := table[t]; ok {
		return e.name
	}
	return fmt.Sprintf("orientation(%d)", uint16(t))
}

// Valid reports whether t is one of the eight EXIF orientations.
func (t Tag) Valid() bool {
	_, ok := table[t]
	return ok
}

// Transform maps coordinates between the raw buffer and the upright image.
// Coordinates are pixel-edge based: (0,0) is the top-left corner of the first
// pixel and (W,H) the bottom-right corner of the last.
type Transform struct {
	Tag     Tag
	Raw     types.PixelSize
	Upright types.PixelSize
	// Forward maps raw coordinates to upright coordinates.
	Forward f64.Aff3
	// Inverse maps upright coordinates back to raw coordinates.
	Inverse f64.Aff3
}

// New builds the transform for tag over a raw buffer of the given size.
// Unknown tags yield the identity transform together with ErrUnsupported.
func New(tag Tag, raw types.PixelSize) (Transform, error) {
	e, ok := table[tag]
	var err error
	if !ok {
		err = fmt.Errorf("%w: tag %d", ErrUnsupported, uint16(tag))
		tag, e = Normal, table[Normal]
	}

	w, h := float64(raw.Width), float64(raw.Height)
	fwd := f64.Aff3{
		e.a, e.b, e.tx[0]*w + e.tx[1]*h,
		e.d, e.e, e.ty[0]*w + e.ty[1]*h,
	}

	upright := raw
	if e.swap {
		upright = types.PixelSize{Width: raw.Height, Height: raw.Width}
	}

	return Transform{
		Tag:     tag,
		Raw:     raw,
		Upright: upright,
		Forward: fwd,
		Inverse: invert(fwd),
	}, err
}

// Resolve is New with the unsupported-tag fallback recovered locally: the
// identity transform is returned and the event is logged as a warning.
func Resolve(ctx context.Context, tag Tag, raw types.PixelSize) Transform {
	t, err := New(tag, raw)
	if err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Uint16("tag", uint16(tag)).
			Msg("falling back to identity orientation")
	}
	return t
}

// IsIdentity reports whether the raw buffer is already upright.
func (t Transform) IsIdentity() bool {
	return t.Tag == Normal
}

// ToUpright maps a raw coordinate to upright space.
func (t Transform) ToUpright(p types.Point) types.Point {
	return apply(t.Forward, p)
}

// ToRaw maps an upright coordinate to raw space.
func (t Transform) ToRaw(p types.Point) types.Point {
	return apply(t.Inverse, p)
}

// RectToRaw maps an upright rectangle into raw space.
func (t Transform) RectToRaw(r types.Rect) types.Rect {
	return types.RectFromPoints(t.ToRaw(r.Min()), t.ToRaw(r.Max()))
}

// RectToUpright maps a raw rectangle into upright space.
func (t Transform) RectToUpright(r types.Rect) types.Rect {
	return types.RectFromPoints(t.ToUpright(r.Min()), t.ToUpright(r.Max()))
}

// RawPixel returns the raw pixel that is shown at upright pixel (u, v).
func (t Transform) RawPixel(u, v int) (x, y int) {
	p := t.ToRaw(types.Point{X: float64(u) + 0.5, Y: float64(v) + 0.5})
	return int(math.Floor(p.X)), int(math.Floor(p.Y))
}

// RawStep returns the raw pixel delta for one step along the upright x axis.
func (t Transform) RawStep() (dx, dy int) {
	return int(t.Inverse[0]), int(t.Inverse[3])
}

func apply(m f64.Aff3, p types.Point) types.Point {
	return types.Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

func invert(m f64.Aff3) f64.Aff3 {
	det := m[0]*m[4] - m[1]*m[3]
	a, b := m[4]/det, -m[1]/det
	d, e := -m[3]/det, m[0]/det
	return f64.Aff3{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}
}
