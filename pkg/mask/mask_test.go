package mask_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/types"
)

var approxRect = qt.CmpEquals(cmpopts.EquateApprox(0, 1e-9))

func TestComputeSquareFillsViewport(t *testing.T) {
	c := qt.New(t)

	g, err := mask.Compute(mask.Params{Mode: mask.Square, Viewport: types.Size{W: 300, H: 300}})
	c.Assert(err, qt.IsNil)
	c.Assert(g.Rect, qt.Equals, types.Rect{W: 300, H: 300})
	c.Assert(g.NeedsAlpha(), qt.IsFalse)

	r, ok := g.Path.AsRect()
	c.Assert(ok, qt.IsTrue)
	c.Assert(r, qt.Equals, g.Rect)
}

func TestComputeCircleWithMargin(t *testing.T) {
	c := qt.New(t)

	g, err := mask.Compute(mask.Params{Mode: mask.Circle, Viewport: types.Size{W: 320, H: 480}, MarginFactor: 0.9})
	c.Assert(err, qt.IsNil)
	c.Assert(g.Rect, approxRect, types.Rect{X: 16, Y: 96, W: 288, H: 288})
	c.Assert(g.NeedsAlpha(), qt.IsTrue)
	c.Assert(g.Path.Bounds(), approxRect, g.Rect)
}

func TestComputeFixedPixelSize(t *testing.T) {
	c := qt.New(t)

	g, err := mask.Compute(mask.Params{
		Mode:           mask.Square,
		Viewport:       types.Size{W: 300, H: 300},
		FixedPixelSize: &types.PixelSize{Width: 500, Height: 500},
		MinScale:       0.15,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(g.Rect, approxRect, types.Rect{X: 112.5, Y: 112.5, W: 75, H: 75})

	// larger than the viewport: scaled down keeping the aspect ratio
	g, err = mask.Compute(mask.Params{
		Mode:           mask.Circle,
		Viewport:       types.Size{W: 300, H: 300},
		FixedPixelSize: &types.PixelSize{Width: 4000, Height: 2000},
		MinScale:       0.15,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(g.Rect, approxRect, types.Rect{X: 0, Y: 75, W: 300, H: 150})
}

func TestComputeEmptyViewport(t *testing.T) {
	c := qt.New(t)

	_, err := mask.Compute(mask.Params{Mode: mask.Circle, Viewport: types.Size{W: 0, H: 100}})
	c.Assert(err, qt.ErrorIs, mask.ErrDegenerate)
}

func TestComputeCustomMissingSupplier(t *testing.T) {
	c := qt.New(t)

	_, err := mask.Compute(mask.Params{Mode: mask.Custom, Viewport: types.Size{W: 100, H: 100}})
	c.Assert(err, qt.ErrorIs, mask.ErrMissingSupplier)
	c.Assert(err, qt.ErrorIs, mask.ErrConfiguration)
}

func TestComputeCustomPolygon(t *testing.T) {
	c := qt.New(t)

	supplier := mask.PolygonSupplier{Points: []types.Point{{X: 0.5, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}
	g, err := mask.Compute(mask.Params{Mode: mask.Custom, Viewport: types.Size{W: 200, H: 100}, Supplier: supplier})
	c.Assert(err, qt.IsNil)
	c.Assert(g.Rect, qt.Equals, types.Rect{W: 200, H: 100})
	c.Assert(g.NeedsAlpha(), qt.IsTrue)
}

func TestComputeCustomContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		rect   types.Rect
		path   *mask.Path
		reason string
	}{
		{
			name:   "path exceeds rect",
			rect:   types.Rect{X: 10, Y: 10, W: 50, H: 50},
			path:   mask.EllipsePath(types.Rect{X: 0, Y: 0, W: 80, H: 80}),
			reason: "path bounds exceed rect",
		},
		{
			name:   "rect exceeds viewport",
			rect:   types.Rect{X: 50, Y: 50, W: 100, H: 100},
			path:   mask.RectPath(types.Rect{X: 50, Y: 50, W: 100, H: 100}),
			reason: "rect exceeds viewport",
		},
		{
			name:   "empty path",
			rect:   types.Rect{X: 0, Y: 0, W: 50, H: 50},
			path:   mask.NewPath(),
			reason: "empty path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			supplier := mask.SupplierFuncs{
				RectFunc: func(types.Size) types.Rect { return tt.rect },
				PathFunc: func(types.Size) *mask.Path { return tt.path },
			}

			_, err := mask.Compute(mask.Params{Mode: mask.Custom, Viewport: types.Size{W: 100, H: 100}, Supplier: supplier})
			c.Assert(err, qt.ErrorIs, mask.ErrDegenerate)
			c.Assert(err, qt.ErrorIs, mask.ErrConfiguration)

			var ce *mask.ContractError
			c.Assert(errors.As(err, &ce), qt.IsTrue)
			c.Assert(ce.Reason, qt.Equals, tt.reason)
		})
	}
}

func TestComputeCustomZeroArea(t *testing.T) {
	c := qt.New(t)

	supplier := mask.SupplierFuncs{
		RectFunc: func(types.Size) types.Rect { return types.Rect{X: 10, Y: 10} },
		PathFunc: func(types.Size) *mask.Path { return mask.NewPath() },
	}
	_, err := mask.Compute(mask.Params{Mode: mask.Custom, Viewport: types.Size{W: 100, H: 100}, Supplier: supplier})
	c.Assert(err, qt.ErrorIs, mask.ErrDegenerate)

	var ce *mask.ContractError
	c.Assert(errors.As(err, &ce), qt.IsFalse)
}

func TestComputeCustomConsultsSupplierEveryPass(t *testing.T) {
	c := qt.New(t)

	calls := 0
	supplier := mask.SupplierFuncs{
		RectFunc: func(vp types.Size) types.Rect {
			calls++
			return types.Rect{W: vp.W / 2, H: vp.H / 2}
		},
		PathFunc: func(vp types.Size) *mask.Path {
			return mask.RectPath(types.Rect{W: vp.W / 2, H: vp.H / 2})
		},
	}

	g1, err := mask.Compute(mask.Params{Mode: mask.Custom, Viewport: types.Size{W: 100, H: 100}, Supplier: supplier})
	c.Assert(err, qt.IsNil)
	g2, err := mask.Compute(mask.Params{Mode: mask.Custom, Viewport: types.Size{W: 200, H: 100}, Supplier: supplier})
	c.Assert(err, qt.IsNil)

	c.Assert(calls, qt.Equals, 2)
	c.Assert(g1.Rect, qt.Equals, types.Rect{W: 50, H: 50})
	c.Assert(g2.Rect, qt.Equals, types.Rect{W: 100, H: 50})
	c.Assert(g2.NeedsAlpha(), qt.IsFalse)
}

func TestPathBoundsIncludesCurveExtrema(t *testing.T) {
	c := qt.New(t)

	p := mask.NewPath()
	p.MoveTo(0, 0)
	p.QuadTo(5, 10, 10, 0)
	p.Close()
	c.Assert(p.Bounds(), approxRect, types.Rect{W: 10, H: 5})

	p = mask.NewPath()
	p.MoveTo(0, 0)
	p.CubicTo(0, 12, 10, 12, 10, 0)
	p.Close()
	c.Assert(p.Bounds(), approxRect, types.Rect{W: 10, H: 9})
}

func TestPathTransformAndClone(t *testing.T) {
	c := qt.New(t)

	p := mask.RectPath(types.Rect{X: 1, Y: 2, W: 3, H: 4})
	moved := p.Transform(f64.Aff3{2, 0, 10, 0, 2, 20})
	c.Assert(moved.Bounds(), qt.Equals, types.Rect{X: 12, Y: 24, W: 6, H: 8})
	c.Assert(p.Bounds(), qt.Equals, types.Rect{X: 1, Y: 2, W: 3, H: 4})

	g := mask.Geometry{Mode: mask.Square, Rect: types.Rect{W: 1, H: 1}, Path: p}
	clone := g.Clone()
	c.Assert(clone.Path == g.Path, qt.IsFalse)
	c.Assert(clone.Path, qt.CmpEquals(cmp.AllowUnexported(mask.Path{})), g.Path)
}

func TestRasterizeCircle(t *testing.T) {
	c := qt.New(t)

	p := mask.EllipsePath(types.Rect{W: 100, H: 100})
	alpha := p.Rasterize(f64.Aff3{1, 0, 0, 0, 1, 0}, 100, 100)

	c.Assert(alpha.AlphaAt(50, 50).A, qt.Equals, uint8(255))
	c.Assert(alpha.AlphaAt(0, 0).A, qt.Equals, uint8(0))
	c.Assert(alpha.AlphaAt(99, 99).A, qt.Equals, uint8(0))
	c.Assert(alpha.AlphaAt(50, 1).A > 0, qt.IsTrue)
}

func TestParseMode(t *testing.T) {
	c := qt.New(t)

	for _, m := range []mask.Mode{mask.Circle, mask.Square, mask.Custom} {
		got, err := mask.ParseMode(m.String())
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, m)
	}

	var m mask.Mode
	c.Assert(m.UnmarshalText([]byte("SQUARE")), qt.IsNil)
	c.Assert(m, qt.Equals, mask.Square)

	_, err := mask.ParseMode("hexagon")
	c.Assert(err, qt.ErrorMatches, `unknown crop mode "hexagon"`)
}
