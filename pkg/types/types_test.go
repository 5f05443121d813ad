package types

import (
	"image"
	"testing"
)

func TestRectFromPoints(t *testing.T) {
	r := RectFromPoints(Point{X: 10, Y: 2}, Point{X: 4, Y: 8})
	if want := (Rect{X: 4, Y: 2, W: 6, H: 6}); r != want {
		t.Errorf("RectFromPoints() = %v, want %v", r, want)
	}
	if c := r.Center(); c != (Point{X: 7, Y: 5}) {
		t.Errorf("Center() = %v", c)
	}
}

func TestRectContainment(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 100, H: 50}
	if !r.ContainsRect(Rect{X: -1e-9, Y: 0, W: 100, H: 50}, 1e-6) {
		t.Error("ContainsRect() should allow tolerance")
	}
	if r.ContainsRect(Rect{X: 10, Y: 10, W: 100, H: 10}, 1e-6) {
		t.Error("ContainsRect() accepted an overflowing rect")
	}
}

func TestSizeIsEmpty(t *testing.T) {
	tests := map[Size]bool{
		{W: 1, H: 1}:  false,
		{W: 0, H: 1}:  true,
		{W: 1, H: -2}: true,
	}
	for s, want := range tests {
		if got := s.IsEmpty(); got != want {
			t.Errorf("%v.IsEmpty() = %v, want %v", s, got, want)
		}
	}
}

func TestParsePixelSize(t *testing.T) {
	p, err := ParsePixelSize("640x480")
	if err != nil {
		t.Fatalf("ParsePixelSize() error = %v", err)
	}
	if p != (PixelSize{Width: 640, Height: 480}) || p.String() != "640x480" {
		t.Errorf("ParsePixelSize() = %v", p)
	}

	for _, s := range []string{"", "640", "0x480", "axb"} {
		if _, err := ParsePixelSize(s); err == nil {
			t.Errorf("ParsePixelSize(%q) expected error", s)
		}
	}
}

func TestPixelSizeOf(t *testing.T) {
	img := image.NewGray(image.Rect(5, 5, 25, 15))
	if got := PixelSizeOf(img); got != (PixelSize{Width: 20, Height: 10}) {
		t.Errorf("PixelSizeOf() = %v", got)
	}
}
