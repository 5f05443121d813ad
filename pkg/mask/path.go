package mask

import (
	"image"
	"math"

	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"github.com/menta2k/image-cropper/pkg/types"
)

// Op identifies the kind of a path segment.
type Op uint8

const (
	MoveTo Op = iota
	LineTo
	QuadTo
	CubicTo
	Close
)

// Segment is one path command. Points holds the control points followed by
// the end point; unused entries are zero.
type Segment struct {
	Op     Op
	Points [3]types.Point
}

// end returns the segment's end point.
func (s Segment) end() types.Point {
	switch s.Op {
	case QuadTo:
		return s.Points[1]
	case CubicTo:
		return s.Points[2]
	}
	return s.Points[0]
}

// Path is an ordered sequence of segments describing a closed crop boundary.
type Path struct {
	segments []Segment
	start    types.Point
	current  types.Point
}

// NewPath creates an empty path.
func NewPath() *Path {
	return &Path{segments: make([]Segment, 0, 8)}
}

// RectPath returns a path tracing r clockwise.
func RectPath(r types.Rect) *Path {
	p := NewPath()
	p.Rectangle(r)
	return p
}

// EllipsePath returns the ellipse inscribed in r.
func EllipsePath(r types.Rect) *Path {
	p := NewPath()
	p.Ellipse(r)
	return p
}

// MoveTo starts a new subpath at (x, y).
func (p *Path) MoveTo(x, y float64) {
	pt := types.Point{X: x, Y: y}
	p.segments = append(p.segments, Segment{Op: MoveTo, Points: [3]types.Point{pt}})
	p.start, p.current = pt, pt
}

// LineTo adds a straight line to (x, y).
func (p *Path) LineTo(x, y float64) {
	pt := types.Point{X: x, Y: y}
	p.segments = append(p.segments, Segment{Op: LineTo, Points: [3]types.Point{pt}})
	p.current = pt
}

// QuadTo adds a quadratic Bézier curve.
func (p *Path) QuadTo(cx, cy, x, y float64) {
	pt := types.Point{X: x, Y: y}
	p.segments = append(p.segments, Segment{Op: QuadTo, Points: [3]types.Point{{X: cx, Y: cy}, pt}})
	p.current = pt
}

// CubicTo adds a cubic Bézier curve.
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) {
	pt := types.Point{X: x, Y: y}
	p.segments = append(p.segments, Segment{Op: CubicTo, Points: [3]types.Point{{X: c1x, Y: c1y}, {X: c2x, Y: c2y}, pt}})
	p.current = pt
}

// Close closes the current subpath.
func (p *Path) Close() {
	p.segments = append(p.segments, Segment{Op: Close})
	p.current = p.start
}

// Rectangle adds r as a closed subpath.
func (p *Path) Rectangle(r types.Rect) {
	p.MoveTo(r.X, r.Y)
	p.LineTo(r.X+r.W, r.Y)
	p.LineTo(r.X+r.W, r.Y+r.H)
	p.LineTo(r.X, r.Y+r.H)
	p.Close()
}

// Ellipse adds the ellipse inscribed in r using four cubic curves.
func (p *Path) Ellipse(r types.Rect) {
	const k = 0.5522847498307936 // 4/3 * (sqrt(2) - 1)
	c := r.Center()
	rx, ry := r.W/2, r.H/2
	ox, oy := rx*k, ry*k

	p.MoveTo(c.X+rx, c.Y)
	p.CubicTo(c.X+rx, c.Y+oy, c.X+ox, c.Y+ry, c.X, c.Y+ry)
	p.CubicTo(c.X-ox, c.Y+ry, c.X-rx, c.Y+oy, c.X-rx, c.Y)
	p.CubicTo(c.X-rx, c.Y-oy, c.X-ox, c.Y-ry, c.X, c.Y-ry)
	p.CubicTo(c.X+ox, c.Y-ry, c.X+rx, c.Y-oy, c.X+rx, c.Y)
	p.Close()
}

// Polygon adds a closed polygon through pts.
func (p *Path) Polygon(pts []types.Point) {
	for i, pt := range pts {
		if i == 0 {
			p.MoveTo(pt.X, pt.Y)
			continue
		}
		p.LineTo(pt.X, pt.Y)
	}
	if len(pts) > 0 {
		p.Close()
	}
}

// IsEmpty reports whether the path has no drawing segments.
func (p *Path) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, s := range p.segments {
		if s.Op != MoveTo && s.Op != Close {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the path.
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	c := *p
	c.segments = append([]Segment(nil), p.segments...)
	return &c
}

// Transform returns a copy of the path with every point mapped by m.
func (p *Path) Transform(m f64.Aff3) *Path {
	c := p.Clone()
	for i := range c.segments {
		for j := range c.segments[i].Points {
			c.segments[i].Points[j] = apply(m, c.segments[i].Points[j])
		}
	}
	c.start = apply(m, c.start)
	c.current = apply(m, c.current)
	return c
}

// Bounds returns the tight bounding box of the path, curve extrema included.
func (p *Path) Bounds() types.Rect {
	if p == nil {
		return types.Rect{}
	}
	b := newBox()
	var cur, start types.Point
	for _, s := range p.segments {
		switch s.Op {
		case MoveTo:
			b.add(s.Points[0])
			start = s.Points[0]
		case LineTo:
			b.add(s.Points[0])
		case QuadTo:
			b.add(s.Points[1])
			for _, t := range quadExtrema(cur, s.Points[0], s.Points[1]) {
				b.add(quadAt(cur, s.Points[0], s.Points[1], t))
			}
		case CubicTo:
			b.add(s.Points[2])
			for _, t := range cubicExtrema(cur, s.Points[0], s.Points[1], s.Points[2]) {
				b.add(cubicAt(cur, s.Points[0], s.Points[1], s.Points[2], t))
			}
		}
		if s.Op == Close {
			cur = start
		} else {
			cur = s.end()
		}
	}
	return b.rect()
}

// AsRect reports whether the path is a single axis aligned rectangle and
// returns it.
func (p *Path) AsRect() (types.Rect, bool) {
	if p == nil {
		return types.Rect{}, false
	}
	var pts []types.Point
	for i, s := range p.segments {
		switch {
		case i == 0 && s.Op == MoveTo:
			pts = append(pts, s.Points[0])
		case i > 0 && s.Op == LineTo:
			pts = append(pts, s.Points[0])
		case s.Op == Close && i == len(p.segments)-1:
		default:
			return types.Rect{}, false
		}
	}
	if n := len(pts); n == 5 && pts[4] == pts[0] {
		pts = pts[:4]
	}
	if len(pts) != 4 {
		return types.Rect{}, false
	}
	for i := range pts {
		a, b := pts[i], pts[(i+1)%4]
		if a.X != b.X && a.Y != b.Y {
			return types.Rect{}, false
		}
	}
	r := types.RectFromPoints(pts[0], pts[2])
	return r, !r.IsEmpty()
}

// Rasterize fills the path, mapped through m, into an alpha mask of the given
// size with anti-aliased edges.
func (p *Path) Rasterize(m f64.Aff3, width, height int) *image.Alpha {
	dst := image.NewAlpha(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return dst
	}

	z := vector.NewRasterizer(width, height)
	open := false
	for _, s := range p.segments {
		var pt [3]types.Point
		for i := range s.Points {
			pt[i] = apply(m, s.Points[i])
		}
		switch s.Op {
		case MoveTo:
			if open {
				z.ClosePath()
			}
			z.MoveTo(float32(pt[0].X), float32(pt[0].Y))
			open = true
		case LineTo:
			z.LineTo(float32(pt[0].X), float32(pt[0].Y))
		case QuadTo:
			z.QuadTo(float32(pt[0].X), float32(pt[0].Y), float32(pt[1].X), float32(pt[1].Y))
		case CubicTo:
			z.CubeTo(float32(pt[0].X), float32(pt[0].Y), float32(pt[1].X), float32(pt[1].Y), float32(pt[2].X), float32(pt[2].Y))
		case Close:
			z.ClosePath()
			open = false
		}
	}
	if open {
		z.ClosePath()
	}

	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}

func apply(m f64.Aff3, p types.Point) types.Point {
	return types.Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

type box struct{ minX, minY, maxX, maxY float64 }

func newBox() box {
	return box{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

func (b *box) add(p types.Point) {
	b.minX, b.maxX = math.Min(b.minX, p.X), math.Max(b.maxX, p.X)
	b.minY, b.maxY = math.Min(b.minY, p.Y), math.Max(b.maxY, p.Y)
}

func (b box) rect() types.Rect {
	if b.minX > b.maxX {
		return types.Rect{}
	}
	return types.Rect{X: b.minX, Y: b.minY, W: b.maxX - b.minX, H: b.maxY - b.minY}
}

func quadAt(p0, p1, p2 types.Point, t float64) types.Point {
	u := 1 - t
	return p0.Mul(u * u).Add(p1.Mul(2 * u * t)).Add(p2.Mul(t * t))
}

func cubicAt(p0, p1, p2, p3 types.Point, t float64) types.Point {
	u := 1 - t
	return p0.Mul(u * u * u).Add(p1.Mul(3 * u * u * t)).Add(p2.Mul(3 * u * t * t)).Add(p3.Mul(t * t * t))
}

// quadExtrema returns the parameters in (0,1) where either coordinate of the
// quadratic curve has a zero derivative.
func quadExtrema(p0, p1, p2 types.Point) []float64 {
	var ts []float64
	for _, c := range [][3]float64{{p0.X, p1.X, p2.X}, {p0.Y, p1.Y, p2.Y}} {
		den := c[0] - 2*c[1] + c[2]
		if den == 0 {
			continue
		}
		if t := (c[0] - c[1]) / den; t > 0 && t < 1 {
			ts = append(ts, t)
		}
	}
	return ts
}

// cubicExtrema returns the parameters in (0,1) where either coordinate of the
// cubic curve has a zero derivative.
func cubicExtrema(p0, p1, p2, p3 types.Point) []float64 {
	var ts []float64
	for _, c := range [][4]float64{{p0.X, p1.X, p2.X, p3.X}, {p0.Y, p1.Y, p2.Y, p3.Y}} {
		a := -c[0] + 3*c[1] - 3*c[2] + c[3]
		b := 2 * (c[0] - 2*c[1] + c[2])
		k := c[1] - c[0]
		for _, t := range solveQuadratic(a, b, k) {
			if t > 0 && t < 1 {
				ts = append(ts, t)
			}
		}
	}
	return ts
}

func solveQuadratic(a, b, c float64) []float64 {
	const eps = 1e-12
	if math.Abs(a) < eps {
		if math.Abs(b) < eps {
			return nil
		}
		return []float64{-c / b}
	}
	d := b*b - 4*a*c
	if d < 0 {
		return nil
	}
	sq := math.Sqrt(d)
	return []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
}
