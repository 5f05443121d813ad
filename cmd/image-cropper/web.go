package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/types"
)

const maxUploadSize = 64 << 20

type Config struct {
	Addr             string
	Cropper          *config.Config
	OnBeforeShutdown func()
	OnReady          func(addr string)
}

type WebApp struct {
	config       Config
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

func NewWebApp(config Config) *WebApp {
	return &WebApp{
		config:     config,
		shutdownCh: make(chan struct{}),
	}
}

func (a *WebApp) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// newServer builds the fiber app with all routes registered. Request
// handlers log through the logger carried by ctx
func (a *WebApp) newServer(ctx context.Context) *fiber.App {
	webapp := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             maxUploadSize,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Ctx(c.UserContext()).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request failed")
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		},
	})

	webapp.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(log.Ctx(ctx).WithContext(c.UserContext()))
		return c.Next()
	})

	webapp.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": imagecropper.Version})
	})

	webapp.Post("/api/bounds", func(c *fiber.Ctx) error {
		ic, view, err := a.cropperFor(c)
		if err != nil {
			return err
		}
		src, err := decodeBody(c, ic)
		if err != nil {
			return err
		}
		report, err := ic.Locate(c.UserContext(), src, view)
		if err != nil {
			return cropError(err)
		}
		return c.JSON(report)
	})

	webapp.Post("/api/crop", func(c *fiber.Ctx) error {
		ic, view, err := a.cropperFor(c)
		if err != nil {
			return err
		}
		src, err := decodeBody(c, ic)
		if err != nil {
			return err
		}
		res, err := ic.Crop(c.UserContext(), src, view)
		if err != nil {
			return cropError(err)
		}

		format := processing.FormatFromPath("." + c.Query("format", ic.Config().Output.DefaultFormat))
		if format == "" {
			return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("unsupported output format %q", c.Query("format")))
		}
		var buf bytes.Buffer
		if err := ic.Encode(&buf, res.Image, format); err != nil {
			return fmt.Errorf("failed to encode crop: %w", err)
		}

		c.Set("X-Crop-Rect", res.SourceRect.String())
		c.Type(format)
		return c.Send(buf.Bytes())
	})

	webapp.Post("/api/shutdown", func(c *fiber.Ctx) error {
		a.Shutdown()
		return c.SendStatus(http.StatusNoContent)
	})

	return webapp
}

func (a *WebApp) Run(ctx context.Context) error {
	webapp := a.newServer(ctx)

	webapp.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := a.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-a.shutdownCh:
		}
		if fn := a.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if err := webapp.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	listener, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := webapp.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cropperFor applies the per-request query overrides to a copy of the
// configured crop settings
func (a *WebApp) cropperFor(c *fiber.Ctx) (*imagecropper.ImageCropper, imagecropper.View, error) {
	cfg := *a.config.Cropper

	if m := c.Query("mode"); m != "" {
		mode, err := mask.ParseMode(m)
		if err != nil {
			return nil, imagecropper.View{}, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		cfg.Cropper.Mode = mode
	}
	if s := c.Query("fixed"); s != "" {
		size, err := types.ParsePixelSize(s)
		if err != nil {
			return nil, imagecropper.View{}, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		cfg.Cropper.FixedSize = &size
	}
	if c.QueryBool("fit") {
		cfg.Cropper.AspectFill = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, imagecropper.View{}, fiber.NewError(http.StatusBadRequest, err.Error())
	}

	view := imagecropper.View{Zoom: c.QueryFloat("zoom")}
	x, y := c.Query("x"), c.Query("y")
	if x != "" || y != "" {
		var p types.Point
		if _, err := fmt.Sscanf(x+" "+y, "%g %g", &p.X, &p.Y); err != nil {
			return nil, imagecropper.View{}, fiber.NewError(http.StatusBadRequest, "offset needs numeric x and y")
		}
		view.Offset = &p
	}

	return imagecropper.NewWithConfig(&cfg), view, nil
}

func decodeBody(c *fiber.Ctx, ic *imagecropper.ImageCropper) (cropper.SourceImage, error) {
	body := c.Body()
	if len(body) == 0 {
		return cropper.SourceImage{}, fiber.NewError(http.StatusBadRequest, "request body must contain an image")
	}
	src, err := ic.DecodeImage(c.UserContext(), body)
	if errors.Is(err, analyzer.ErrUnsupportedFormat) {
		return cropper.SourceImage{}, fiber.NewError(http.StatusUnsupportedMediaType, err.Error())
	}
	if err != nil {
		return cropper.SourceImage{}, fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	}
	return src, nil
}

// cropError maps crop failures to HTTP errors
func cropError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(http.StatusServiceUnavailable, "crop cancelled")
	case cropper.IsConfigError(err), errors.Is(err, cropper.ErrDegenerateMask):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, cropper.ErrInvalidSource):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	}
	return err
}
