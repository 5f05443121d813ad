package types

import (
	"fmt"
	"image"
	"math"
)

// Point is a position in layout units or pixels, depending on the space it lives in
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Mul returns p scaled by k
func (p Point) Mul(k float64) Point { return Point{p.X * k, p.Y * k} }

// Size is a width/height pair in layout units or pixels
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// IsEmpty reports whether the size has no area
func (s Size) IsEmpty() bool {
	return !(s.W > 0) || !(s.H > 0)
}

// Scale returns the size scaled by k on both axes
func (s Size) Scale(k float64) Size { return Size{s.W * k, s.H * k} }

func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.W, s.H)
}

// Rect represents an axis aligned rectangle. Width and height are never negative
// for rectangles produced by this module
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// RectFromPoints returns the rectangle spanned by two corners in any order
func RectFromPoints(a, b Point) Rect {
	x0, x1 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y0, y1 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Min returns the top-left corner
func (r Rect) Min() Point { return Point{r.X, r.Y} }

// Max returns the bottom-right corner
func (r Rect) Max() Point { return Point{r.X + r.W, r.Y + r.H} }

// Size returns the rectangle dimensions
func (r Rect) Size() Size { return Size{r.W, r.H} }

// Center returns the center point of the rectangle
func (r Rect) Center() Point { return Point{r.X + r.W/2, r.Y + r.H/2} }

// IsEmpty reports whether the rectangle has no area
func (r Rect) IsEmpty() bool { return r.Size().IsEmpty() }

// ContainsRect reports whether o lies inside r, allowing tol of slack on every edge
func (r Rect) ContainsRect(o Rect, tol float64) bool {
	return o.X >= r.X-tol && o.Y >= r.Y-tol &&
		o.X+o.W <= r.X+r.W+tol && o.Y+o.H <= r.Y+r.H+tol
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}

// PixelSize is an integer size in pixels
type PixelSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PixelSizeOf returns the pixel dimensions of img
func PixelSizeOf(img image.Image) PixelSize {
	b := img.Bounds()
	return PixelSize{Width: b.Dx(), Height: b.Dy()}
}

// Size converts the pixel size to a floating point size
func (p PixelSize) Size() Size {
	return Size{W: float64(p.Width), H: float64(p.Height)}
}

// IsEmpty reports whether the size has no pixels
func (p PixelSize) IsEmpty() bool {
	return p.Width <= 0 || p.Height <= 0
}

func (p PixelSize) String() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// ParsePixelSize parses sizes of the form "WIDTHxHEIGHT"
func ParsePixelSize(s string) (PixelSize, error) {
	var p PixelSize
	if _, err := fmt.Sscanf(s, "%dx%d", &p.Width, &p.Height); err != nil {
		return PixelSize{}, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if p.IsEmpty() {
		return PixelSize{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return p, nil
}
