package orientation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/menta2k/image-cropper/pkg/types"
)

// markerImage returns an upright image with a single red pixel near the
// top-left corner so that every flip and rotation is distinguishable.
func markerImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 10), uint8(y * 10), 128, 255})
		}
	}
	img.Set(1, 0, color.NRGBA{255, 0, 0, 255})
	return img
}

// stored returns the raw buffer a camera would have written for the upright image.
func stored(upright image.Image, tag Tag) *image.NRGBA {
	switch tag {
	case FlipH:
		return imaging.FlipH(upright)
	case Rotate180:
		return imaging.Rotate180(upright)
	case FlipV:
		return imaging.FlipV(upright)
	case Transpose:
		return imaging.Transpose(upright)
	case Rotate270:
		return imaging.Rotate90(upright)
	case Transverse:
		return imaging.Transverse(upright)
	case Rotate90:
		return imaging.Rotate270(upright)
	}
	return imaging.Clone(upright)
}

func TestNewUprightSize(t *testing.T) {
	raw := types.PixelSize{Width: 40, Height: 30}
	for _, tag := range Tags {
		tr, err := New(tag, raw)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tag, err)
		}

		want := raw
		if tag >= Transpose {
			want = types.PixelSize{Width: 30, Height: 40}
		}
		if tr.Upright != want {
			t.Errorf("%s: expected upright %v, got %v", tag, want, tr.Upright)
		}
	}
}

func TestTransformRoundTrip(t *testing.T) {
	raw := types.PixelSize{Width: 17, Height: 9}
	points := []types.Point{{0, 0}, {3.25, 7.5}, {17, 9}, {16.5, 0.5}}

	for _, tag := range Tags {
		tr, _ := New(tag, raw)
		for _, p := range points {
			got := tr.ToRaw(tr.ToUpright(p))
			if math.Abs(got.X-p.X) > 1e-9 || math.Abs(got.Y-p.Y) > 1e-9 {
				t.Errorf("%s: round trip of %v gave %v", tag, p, got)
			}
		}

		full := types.Rect{W: 17, H: 9}
		up := tr.RectToUpright(full)
		if up.X != 0 || up.Y != 0 || up.W != float64(tr.Upright.Width) || up.H != float64(tr.Upright.Height) {
			t.Errorf("%s: full raw rect mapped to %v", tag, up)
		}
	}
}

func TestRawPixelMatchesImaging(t *testing.T) {
	upright := markerImage(7, 4)

	for _, tag := range Tags {
		raw := stored(upright, tag)
		tr, _ := New(tag, types.PixelSizeOf(raw))
		if tr.Upright != types.PixelSizeOf(upright) {
			t.Fatalf("%s: upright size %v, want %v", tag, tr.Upright, types.PixelSizeOf(upright))
		}

		for v := 0; v < 4; v++ {
			for u := 0; u < 7; u++ {
				x, y := tr.RawPixel(u, v)
				if got, want := raw.NRGBAAt(x, y), upright.NRGBAAt(u, v); got != want {
					t.Fatalf("%s: upright (%d,%d) read raw (%d,%d) = %v, want %v", tag, u, v, x, y, got, want)
				}
			}
		}
	}
}

func TestRawStep(t *testing.T) {
	tr, _ := New(Rotate270, types.PixelSize{Width: 10, Height: 6})
	x0, y0 := tr.RawPixel(2, 3)
	x1, y1 := tr.RawPixel(3, 3)
	dx, dy := tr.RawStep()
	if x1-x0 != dx || y1-y0 != dy {
		t.Errorf("step mismatch: pixels moved (%d,%d), step reports (%d,%d)", x1-x0, y1-y0, dx, dy)
	}
}

func TestUnsupportedTag(t *testing.T) {
	raw := types.PixelSize{Width: 5, Height: 3}
	tr, err := New(Tag(9), raw)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if !tr.IsIdentity() || tr.Upright != raw {
		t.Errorf("expected identity fallback, got %+v", tr)
	}
}

func TestResolveLogsFallback(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	tr := Resolve(ctx, Tag(0), types.PixelSize{Width: 2, Height: 2})
	if !tr.IsIdentity() {
		t.Error("expected identity transform")
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected a warning to be logged, got %q", buf.String())
	}

	buf.Reset()
	Resolve(ctx, Rotate90, types.PixelSize{Width: 2, Height: 2})
	if buf.Len() != 0 {
		t.Errorf("expected no log output for a valid tag, got %q", buf.String())
	}
}

func TestTagString(t *testing.T) {
	if Rotate180.String() != "rotate-180" {
		t.Errorf("unexpected name %q", Rotate180.String())
	}
	if Tag(42).String() != "orientation(42)" {
		t.Errorf("unexpected name %q", Tag(42).String())
	}
}
