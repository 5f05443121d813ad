package cropper

import (
	"context"
	"image"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/sourcegraph/conc/pool"

	"github.com/menta2k/image-cropper/pkg/orientation"
	"github.com/menta2k/image-cropper/pkg/types"
)

// rowsPerTask is the number of output scanlines one worker handles per task
const rowsPerTask = 32

// extract copies the raw rectangle out of src and returns it upright. upright
// is the same region in upright pixel space. Each band of output rows reads
// only the raw pixels it needs, so no full-size intermediate is built
func extract(ctx context.Context, src image.Image, tr orientation.Transform, raw, upright image.Rectangle) (*image.NRGBA, error) {
	out := image.NewNRGBA(image.Rect(0, 0, upright.Dx(), upright.Dy()))
	origin := src.Bounds().Min
	dx, dy := tr.RawStep()

	err := forEachBand(ctx, out.Rect.Dy(), func(ctx context.Context, v0, v1 int) error {
		band := bandRect(tr, upright, v0, v1).Intersect(raw)
		tile := imaging.Crop(src, band.Add(origin))

		if tr.IsIdentity() {
			for v := v0; v < v1; v++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				row := tile.Pix[(v-v0)*tile.Stride : (v-v0)*tile.Stride+out.Rect.Dx()*4]
				copy(out.Pix[out.PixOffset(0, v):], row)
			}
			return nil
		}

		step := dy*tile.Stride + dx*4
		for v := v0; v < v1; v++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			x, y := tr.RawPixel(upright.Min.X, upright.Min.Y+v)
			si := tile.PixOffset(x-band.Min.X, y-band.Min.Y)
			di := out.PixOffset(0, v)
			for u := 0; u < out.Rect.Dx(); u++ {
				copy(out.Pix[di:di+4], tile.Pix[si:si+4])
				di += 4
				si += step
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// bandRect returns the raw pixels behind upright rows [v0,v1) of upright
func bandRect(tr orientation.Transform, upright image.Rectangle, v0, v1 int) image.Rectangle {
	r := tr.RectToRaw(types.Rect{
		X: float64(upright.Min.X),
		Y: float64(upright.Min.Y + v0),
		W: float64(upright.Dx()),
		H: float64(v1 - v0),
	})
	return RoundOut(r, tr.Raw)
}

// applyAlpha multiplies the alpha channel of img by mask
func applyAlpha(ctx context.Context, img *image.NRGBA, mask *image.Alpha) error {
	return forEachBand(ctx, img.Rect.Dy(), func(ctx context.Context, y0, y1 int) error {
		for y := y0; y < y1; y++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			pi := img.PixOffset(0, y)
			mi := mask.PixOffset(0, y)
			for x := 0; x < img.Rect.Dx(); x++ {
				a := uint32(img.Pix[pi+3]) * uint32(mask.Pix[mi+x])
				img.Pix[pi+3] = uint8((a + 127) / 255)
				pi += 4
			}
		}
		return nil
	})
}

// forEachBand splits [0,height) into bands of rowsPerTask rows and runs fn
// for each on a bounded worker pool. Bands not yet started are skipped once
// ctx is done; fn checks ctx for the rows it owns
func forEachBand(ctx context.Context, height int, fn func(ctx context.Context, y0, y1 int) error) error {
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for y0 := 0; y0 < height; y0 += rowsPerTask {
		y1 := min(y0+rowsPerTask, height)
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, y0, y1)
		})
	}
	return p.Wait()
}
