package cropper

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/orientation"
	"github.com/menta2k/image-cropper/pkg/types"
	"github.com/menta2k/image-cropper/pkg/viewport"
)

// Session holds the interactive state of one crop: the source, the live
// viewport and the mask. Viewport and mask methods follow single-writer
// discipline and must be called from the host's event loop. Confirm and
// Cancel may be called from there as well; resolution runs on its own
// goroutine
type Session struct {
	source    SourceImage
	transform orientation.Transform
	imageSize types.Size
	opts      Options
	logger    *zerolog.Logger

	state    viewport.State
	bounds   viewport.ScaleBounds
	geometry *mask.Geometry

	mu    sync.Mutex
	phase Phase
	job   *job
	seq   uint64
}

type job struct {
	id     uint64
	cancel context.CancelFunc
}

// NewSession creates a session for src. The viewport starts empty; call
// SetViewportSize once the host knows its layout
func NewSession(ctx context.Context, src SourceImage, opts Options) *Session {
	if opts.Dispatcher == nil {
		opts.Dispatcher = Immediate
	}
	if !(opts.PixelDensity > 0) {
		opts.PixelDensity = 1
	}

	tr := orientation.Resolve(ctx, src.Orientation, src.RawSize())
	s := &Session{
		source:    src,
		transform: tr,
		imageSize: tr.Upright.Size(),
		opts:      opts,
		logger:    log.Ctx(ctx),
	}
	s.state.PixelDensity = opts.PixelDensity
	s.bounds = viewport.ComputeScaleBounds(s.imageSize, s.state.Size, opts.AspectFill, opts.PixelDensity)
	return s
}

// Transform returns the orientation transform of the source
func (s *Session) Transform() orientation.Transform { return s.transform }

// ImageSize returns the upright image size in pixels
func (s *Session) ImageSize() types.Size { return s.imageSize }

// State returns a copy of the live viewport state
func (s *Session) State() viewport.State { return s.state }

// ScaleBounds returns the current zoom limits
func (s *Session) ScaleBounds() viewport.ScaleBounds { return s.bounds }

// Options returns the session configuration
func (s *Session) Options() Options { return s.opts }

// Phase returns the resolution state
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetViewportSize lays the session out for a new viewport and resets zoom and
// offset to the initial fit
func (s *Session) SetViewportSize(size types.Size) error {
	s.state.Size = size
	return s.relayout()
}

// SetCropMode switches the mask mode
func (s *Session) SetCropMode(m mask.Mode) error {
	s.opts.CropMode = m
	s.geometry = nil
	return s.clampOffset()
}

// SetFixedCropSize sets or clears the fixed target pixel size
func (s *Session) SetFixedCropSize(size *types.PixelSize) error {
	s.opts.FixedCropSize = size
	s.geometry = nil
	return s.clampOffset()
}

// SetAspectFill switches between aspect fill and aspect fit and resets the
// viewport
func (s *Session) SetAspectFill(fill bool) error {
	s.opts.AspectFill = fill
	return s.relayout()
}

// Reset restores the initial scale and centers the image
func (s *Session) Reset() error {
	s.state.ZoomScale = s.bounds.Initial
	s.state.ContentOffset = viewport.ComputeInitialOffset(s.imageSize, s.state.Size, s.bounds.Initial)
	return s.clampOffset()
}

// ZoomAbout zooms to scale keeping the point under anchor in place
func (s *Session) ZoomAbout(scale float64, anchor types.Point) error {
	s.state = s.state.ZoomAbout(scale, anchor, s.bounds)
	return s.clampOffset()
}

// SetZoomScale zooms about the viewport center
func (s *Session) SetZoomScale(scale float64) error {
	return s.ZoomAbout(scale, types.Point{X: s.state.Size.W / 2, Y: s.state.Size.H / 2})
}

// PanBy applies a drag of (dx, dy) layout units
func (s *Session) PanBy(dx, dy float64) error {
	s.state = s.state.PanBy(dx, dy)
	return s.clampOffset()
}

// SetContentOffset moves the content to offset, clamped to keep the mask
// covered
func (s *Session) SetContentOffset(offset types.Point) error {
	s.state.ContentOffset = offset
	return s.clampOffset()
}

// Layout recomputes the mask geometry. Custom suppliers are consulted once
// per call
func (s *Session) Layout() (mask.Geometry, error) {
	s.geometry = nil
	return s.MaskGeometry()
}

// MaskGeometry returns the mask for the current layout, computing it if the
// last layout was invalidated
func (s *Session) MaskGeometry() (mask.Geometry, error) {
	if s.geometry == nil {
		g, err := mask.Compute(mask.Params{
			Mode:           s.opts.CropMode,
			Viewport:       s.state.Size,
			FixedPixelSize: s.opts.FixedCropSize,
			MinScale:       s.bounds.Min,
			MarginFactor:   s.opts.MarginFactor,
			Supplier:       s.opts.CustomMask,
		})
		if err != nil {
			return mask.Geometry{}, err
		}
		s.geometry = &g
	}
	return s.geometry.Clone(), nil
}

func (s *Session) relayout() error {
	s.bounds = viewport.ComputeScaleBounds(s.imageSize, s.state.Size, s.opts.AspectFill, s.opts.PixelDensity)
	s.geometry = nil
	return s.Reset()
}

func (s *Session) clampOffset() error {
	cover := types.Rect{W: s.state.Size.W, H: s.state.Size.H}
	g, err := s.MaskGeometry()
	if err == nil {
		cover = g.Rect
	}
	s.state.ContentOffset = viewport.ClampOffset(s.state, s.imageSize, cover)
	return err
}

// Request snapshots the state a resolution needs. Later mutations of the
// session do not affect the returned value
func (s *Session) Request() (Request, error) {
	g, err := s.MaskGeometry()
	return Request{
		Source:    s.source,
		Transform: s.transform,
		Viewport:  s.state,
		Mask:      g,
	}, err
}

// Confirm starts resolving the crop in the background. done receives exactly
// one Outcome through the dispatcher. A resolution already in flight is
// cancelled and reports StatusCancelled. Cancelling ctx cancels this call
func (s *Session) Confirm(ctx context.Context, done func(Outcome)) {
	req, maskErr := s.Request()

	jctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if prev := s.job; prev != nil {
		prev.cancel()
	}
	s.seq++
	j := &job{id: s.seq, cancel: cancel}
	s.job = j
	s.phase = PhaseResolving
	s.mu.Unlock()

	s.logger.Debug().Uint64("job", j.id).Stringer("mode", s.opts.CropMode).Msg("crop resolving")

	go s.run(jctx, j, req, maskErr, done)
}

// ConfirmAndWait confirms and blocks until the outcome is delivered. The
// dispatcher must be running
func (s *Session) ConfirmAndWait(ctx context.Context) Outcome {
	ch := make(chan Outcome, 1)
	s.Confirm(ctx, func(o Outcome) { ch <- o })
	return <-ch
}

// Cancel cancels the resolution in flight. With nothing in flight the host is
// notified through Options.OnCancel right away
func (s *Session) Cancel() {
	s.mu.Lock()
	j := s.job
	if j != nil {
		j.cancel()
	}
	s.mu.Unlock()

	if j == nil && s.opts.OnCancel != nil {
		s.opts.Dispatcher.Dispatch(s.opts.OnCancel)
	}
}

func (s *Session) run(ctx context.Context, j *job, req Request, maskErr error, done func(Outcome)) {
	defer j.cancel()

	var res *Result
	err := validateSource(req.Source)
	if err == nil {
		err = maskErr
	}
	if err == nil {
		var pc panics.Catcher
		pc.Try(func() { res, err = Resolve(ctx, req) })
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
		}
	}

	outcome := s.finish(ctx, j, res, err)
	if done != nil {
		s.opts.Dispatcher.Dispatch(func() { done(outcome) })
	}
}

func (s *Session) finish(ctx context.Context, j *job, res *Result, err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var o Outcome
	switch {
	case ctx.Err() != nil:
		o = Outcome{Status: StatusCancelled}
	case err != nil:
		o = Outcome{Status: StatusFailed, Err: err}
	default:
		o = Outcome{Status: StatusSucceeded, Result: res}
	}

	if s.job == j {
		s.job = nil
		s.phase = o.Status.phase()
	}

	ev := s.logger.Debug()
	if o.Status == StatusFailed {
		ev = s.logger.Error().Err(err).Stringer("kind", o.Kind())
	}
	ev.Uint64("job", j.id).Stringer("status", o.Status).Msg("crop finished")

	return o
}
