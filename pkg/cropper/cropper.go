package cropper

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/image-cropper/pkg/mask"
	"github.com/menta2k/image-cropper/pkg/orientation"
	"github.com/menta2k/image-cropper/pkg/types"
)

var (
	// ErrInvalidSource is reported when the source image is missing or has no pixels
	ErrInvalidSource = errors.New("invalid source image")
	// ErrDegenerateMask is reported when the mask has no area or is malformed
	ErrDegenerateMask = mask.ErrDegenerate
)

// IsConfigError reports whether err was caused by host configuration, such as
// a custom mask supplier breaking its contract
func IsConfigError(err error) bool {
	return errors.Is(err, mask.ErrConfiguration)
}

// SourceImage is the photo being cropped. The engine never mutates it
type SourceImage struct {
	Image       image.Image
	Orientation orientation.Tag
}

// RawSize returns the stored pixel dimensions
func (s SourceImage) RawSize() types.PixelSize {
	if s.Image == nil {
		return types.PixelSize{}
	}
	return types.PixelSizeOf(s.Image)
}

// Valid reports whether the source has pixels to crop
func (s SourceImage) Valid() bool {
	return s.Image != nil && !s.RawSize().IsEmpty()
}

func validateSource(s SourceImage) error {
	if s.Image == nil {
		return fmt.Errorf("%w: no image", ErrInvalidSource)
	}
	if size := s.RawSize(); size.IsEmpty() {
		return fmt.Errorf("%w: zero area image %v", ErrInvalidSource, size)
	}
	return nil
}

// Options configures a crop session
type Options struct {
	CropMode   mask.Mode
	AspectFill bool
	// FixedCropSize, when set, is the source pixel size the mask covers at
	// minimum zoom
	FixedCropSize *types.PixelSize
	// CustomMask supplies the geometry in mask.Custom mode
	CustomMask   mask.Supplier
	MarginFactor float64
	// PixelDensity is the device scale factor; it also caps the zoom
	PixelDensity float64
	// Dispatcher delivers completions and cancel notices to the host's event
	// loop. Defaults to Immediate
	Dispatcher Dispatcher
	// OnCancel is notified when Cancel is called with nothing in flight
	OnCancel func()
}

// Result is a finished crop. Ownership passes to the receiver
type Result struct {
	Image  *image.NRGBA
	Width  int
	Height int
	// SourceRect is the cropped region in upright pixel coordinates
	SourceRect image.Rectangle
	// RawRect is the same region in the stored buffer
	RawRect image.Rectangle
	// Masked is set when pixels outside the mask path were made transparent
	Masked bool
}

// Status is the terminal state of one confirm call
type Status int

const (
	StatusSucceeded Status = iota
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// FailureKind classifies failed outcomes
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidSource
	FailureDegenerateMask
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInvalidSource:
		return "invalidSource"
	case FailureDegenerateMask:
		return "degenerateMask"
	}
	return "internal"
}

// KindOf maps an error to its failure kind
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidSource):
		return FailureInvalidSource
	case errors.Is(err, ErrDegenerateMask):
		return FailureDegenerateMask
	}
	return FailureInternal
}

// Outcome is delivered exactly once per confirm call
type Outcome struct {
	Status Status
	Result *Result
	Err    error
}

// Kind returns the failure kind of a failed outcome
func (o Outcome) Kind() FailureKind {
	if o.Status != StatusFailed {
		return FailureNone
	}
	return KindOf(o.Err)
}

// Phase is the session's resolution state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseSucceeded
	PhaseCancelled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolving:
		return "resolving"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (s Status) phase() Phase {
	switch s {
	case StatusSucceeded:
		return PhaseSucceeded
	case StatusCancelled:
		return PhaseCancelled
	}
	return PhaseFailed
}
