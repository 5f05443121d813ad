package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
)

func testPNG(c *qt.C, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, img), qt.IsNil)
	return buf.Bytes()
}

func testServer(c *qt.C) *WebApp {
	cfg := config.Default()
	cfg.Viewport.Width = 300
	cfg.Viewport.Height = 300
	return NewWebApp(Config{Cropper: cfg})
}

func post(c *qt.C, app *WebApp, target string, body []byte) *http.Response {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	resp, err := app.newServer(context.Background()).Test(req, -1)
	c.Assert(err, qt.IsNil)
	return resp
}

func TestHealth(t *testing.T) {
	c := qt.New(t)
	app := testServer(c)

	resp, err := app.newServer(context.Background()).Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
}

func TestBoundsEndpoint(t *testing.T) {
	c := qt.New(t)
	app := testServer(c)

	resp := post(c, app, "/api/bounds", testPNG(c, 600, 400))
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)

	var report imagecropper.Report
	c.Assert(json.NewDecoder(resp.Body).Decode(&report), qt.IsNil)
	c.Assert(report.SourceRect, qt.Equals, image.Rect(100, 0, 500, 400))
	c.Assert(report.Info.Width, qt.Equals, 600)
}

func TestCropEndpoint(t *testing.T) {
	c := qt.New(t)
	app := testServer(c)

	resp := post(c, app, "/api/crop?mode=circle&format=png", testPNG(c, 600, 400))
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(resp.Header.Get("Content-Type"), qt.Equals, "image/png")
	c.Assert(resp.Header.Get("X-Crop-Rect"), qt.Equals, image.Rect(100, 0, 500, 400).String())

	data, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	img, err := png.Decode(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(img.Bounds(), qt.Equals, image.Rect(0, 0, 400, 400))

	_, _, _, a := img.At(0, 0).RGBA()
	c.Assert(a, qt.Equals, uint32(0))
}

func TestEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   []byte
		status int
	}{
		{"empty body", "/api/crop", nil, http.StatusBadRequest},
		{"bad mode", "/api/crop?mode=hexagon", []byte("x"), http.StatusBadRequest},
		{"custom without polygon", "/api/bounds?mode=custom", []byte("x"), http.StatusBadRequest},
		{"bad offset", "/api/bounds?x=abc&y=1", []byte("x"), http.StatusBadRequest},
		{"garbage image", "/api/bounds", []byte("not an image"), http.StatusUnprocessableEntity},
		{"bad format", "/api/crop?format=gif", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			body := tt.body
			if body == nil && tt.name == "bad format" {
				body = testPNG(c, 50, 50)
			}
			resp := post(c, testServer(c), tt.target, body)
			c.Assert(resp.StatusCode, qt.Equals, tt.status)
		})
	}
}

func TestSessionFlagsApply(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()

	view, err := SessionFlags{
		Mode:     "circle",
		Fixed:    "512x256",
		Fit:      true,
		Viewport: "320x240",
		Zoom:     2,
		Offset:   "10,20",
	}.apply(cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Cropper.Mode.String(), qt.Equals, "circle")
	c.Assert(cfg.Cropper.FixedSize.String(), qt.Equals, "512x256")
	c.Assert(cfg.Cropper.AspectFill, qt.IsFalse)
	c.Assert(cfg.Viewport.Width, qt.Equals, 320.0)
	c.Assert(view.Zoom, qt.Equals, 2.0)
	c.Assert(view.Offset.X, qt.Equals, 10.0)
	c.Assert(view.Offset.Y, qt.Equals, 20.0)

	_, err = SessionFlags{Offset: "10"}.apply(config.Default())
	c.Assert(err, qt.ErrorMatches, "--offset: .*")
}
