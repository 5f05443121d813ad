// Package mask derives the crop boundary, a rectangle plus a path in
// viewport coordinates, for the circle, square and custom crop modes.
package mask

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/image-cropper/pkg/types"
)

var (
	// ErrDegenerate is returned when the mask has no area or is malformed.
	ErrDegenerate = errors.New("degenerate mask")
	// ErrConfiguration marks mask errors caused by host configuration.
	ErrConfiguration = errors.New("mask configuration")
	// ErrMissingSupplier is returned in custom mode without a supplier.
	ErrMissingSupplier = fmt.Errorf("%w: custom mode requires a mask supplier", ErrConfiguration)
)

// contractTolerance absorbs rounding in supplier-computed geometry.
const contractTolerance = 1e-6

// Mode selects how the mask is derived.
type Mode int

const (
	Circle Mode = iota
	Square
	Custom
)

var modeNames = map[Mode]string{Circle: "circle", Square: "square", Custom: "custom"}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses "circle", "square" or "custom".
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown crop mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Supplier provides custom mask geometry for a given viewport size.
type Supplier interface {
	CustomMaskRect(viewport types.Size) types.Rect
	CustomMaskPath(viewport types.Size) *Path
}

// SupplierFuncs adapts two functions to the Supplier interface.
type SupplierFuncs struct {
	RectFunc func(viewport types.Size) types.Rect
	PathFunc func(viewport types.Size) *Path
}

func (f SupplierFuncs) CustomMaskRect(viewport types.Size) types.Rect { return f.RectFunc(viewport) }
func (f SupplierFuncs) CustomMaskPath(viewport types.Size) *Path    { return f.PathFunc(viewport) }

// PolygonSupplier supplies a polygon whose vertices are given as fractions of
// the viewport size.
type PolygonSupplier struct {
	Points []types.Point
}

func (s PolygonSupplier) scaled(viewport types.Size) []types.Point {
	pts := make([]types.Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = types.Point{X: p.X * viewport.W, Y: p.Y * viewport.H}
	}
	return pts
}

func (s PolygonSupplier) CustomMaskRect(viewport types.Size) types.Rect {
	return s.CustomMaskPath(viewport).Bounds()
}

func (s PolygonSupplier) CustomMaskPath(viewport types.Size) *Path {
	p := NewPath()
	p.Polygon(s.scaled(viewport))
	return p
}

// Geometry is the crop boundary in viewport coordinates.
type Geometry struct {
	Mode Mode
	Rect types.Rect
	Path *Path
}

// Clone returns a copy that shares nothing with g.
func (g Geometry) Clone() Geometry {
	g.Path = g.Path.Clone()
	return g
}

// NeedsAlpha reports whether the crop has to be masked, i.e. whether the
// path is anything other than the rectangle itself.
func (g Geometry) NeedsAlpha() bool {
	if g.Mode == Square {
		return false
	}
	r, ok := g.Path.AsRect()
	if !ok {
		return true
	}
	return !r.ContainsRect(g.Rect, contractTolerance)
}

// ContractError reports custom geometry that violates the supplier contract.
type ContractError struct {
	Reason string
	Rect   types.Rect
	Bounds types.Rect
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("custom mask contract violated: %s (rect %v, bounds %v)", e.Reason, e.Rect, e.Bounds)
}

// Is makes a ContractError match both ErrDegenerate and ErrConfiguration.
func (e *ContractError) Is(target error) bool {
	return target == ErrDegenerate || target == ErrConfiguration
}

// Params are the inputs to Compute.
type Params struct {
	Mode     Mode
	Viewport types.Size
	// FixedPixelSize, when set, sizes circle/square masks so that at MinScale
	// they cover exactly this many source pixels.
	FixedPixelSize *types.PixelSize
	MinScale       float64
	// MarginFactor scales the derived mask relative to the shorter viewport
	// side. Values outside (0,1] mean 1.
	MarginFactor float64
	Supplier     Supplier
}

// Compute derives the mask geometry for the current layout. Custom suppliers
// are consulted on every call.
func Compute(p Params) (Geometry, error) {
	if p.Viewport.IsEmpty() {
		return Geometry{}, fmt.Errorf("%w: empty viewport %v", ErrDegenerate, p.Viewport)
	}

	switch p.Mode {
	case Circle, Square:
		r := derivedRect(p)
		if r.IsEmpty() {
			return Geometry{}, fmt.Errorf("%w: mask rect %v", ErrDegenerate, r)
		}
		path := RectPath(r)
		if p.Mode == Circle {
			path = EllipsePath(r)
		}
		return Geometry{Mode: p.Mode, Rect: r, Path: path}, nil
	case Custom:
		return customGeometry(p)
	}
	return Geometry{}, fmt.Errorf("%w: unknown crop mode %v", ErrConfiguration, p.Mode)
}

func derivedRect(p Params) types.Rect {
	vw, vh := p.Viewport.W, p.Viewport.H

	var size types.Size
	if p.FixedPixelSize != nil && !p.FixedPixelSize.IsEmpty() && p.MinScale > 0 {
		size = p.FixedPixelSize.Size().Scale(p.MinScale)
	} else {
		margin := p.MarginFactor
		if !(margin > 0) || margin > 1 {
			margin = 1
		}
		side := math.Min(vw, vh) * margin
		size = types.Size{W: side, H: side}
	}

	if size.W > vw || size.H > vh {
		size = size.Scale(math.Min(vw/size.W, vh/size.H))
	}

	return types.Rect{
		X: (vw - size.W) / 2,
		Y: (vh - size.H) / 2,
		W: size.W,
		H: size.H,
	}
}

func customGeometry(p Params) (Geometry, error) {
	if p.Supplier == nil {
		return Geometry{}, ErrMissingSupplier
	}

	r := p.Supplier.CustomMaskRect(p.Viewport)
	path := p.Supplier.CustomMaskPath(p.Viewport)

	if r.IsEmpty() {
		return Geometry{}, fmt.Errorf("%w: custom mask rect %v", ErrDegenerate, r)
	}
	viewport := types.Rect{W: p.Viewport.W, H: p.Viewport.H}
	if !viewport.ContainsRect(r, contractTolerance) {
		return Geometry{}, &ContractError{Reason: "rect exceeds viewport", Rect: r, Bounds: viewport}
	}
	if path.IsEmpty() {
		return Geometry{}, &ContractError{Reason: "empty path", Rect: r}
	}
	if b := path.Bounds(); !r.ContainsRect(b, contractTolerance) {
		return Geometry{}, &ContractError{Reason: "path bounds exceed rect", Rect: r, Bounds: b}
	}

	return Geometry{Mode: Custom, Rect: r, Path: path.Clone()}, nil
}
