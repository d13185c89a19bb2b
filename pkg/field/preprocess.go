package field

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/wildseas/finprint/pkg/geom"
)

// CenterPad resizes img to fit within width×height preserving aspect
// ratio, centered on a black canvas. It returns the padded image together
// with the affine transform mapping original-image coordinates into the
// padded frame.
//
// Subjects photographed from the right side should be flipped with [FlipH]
// before padding so that all subjects share one view convention.
func CenterPad(img image.Image, width, height int) (*image.NRGBA, geom.Affine) {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()

	s := float64(width) / float64(sw)
	if sy := float64(height) / float64(sh); sy < s {
		s = sy
	}
	rw := int(float64(sw)*s + 0.5)
	rh := int(float64(sh)*s + 0.5)

	resized := imaging.Resize(img, rw, rh, imaging.Linear)
	canvas := imaging.New(width, height, image.Black)
	dx := (width - rw) / 2
	dy := (height - rh) / 2
	out := imaging.Paste(canvas, resized, image.Pt(dx, dy))

	t := geom.Compose(geom.Translate(float64(dx), float64(dy)), geom.Scale(s, s))
	return out, t
}

// FlipH mirrors the image horizontally.
func FlipH(img image.Image) *image.NRGBA {
	return imaging.FlipH(img)
}

// Warp maps img through t into a width×height destination frame using
// bilinear interpolation. t maps source coordinates to destination
// coordinates.
func Warp(img image.Image, t geom.Affine, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	m := t.Rows()
	aff := f64.Aff3{
		m[0], m[1], m[2],
		m[3], m[4], m[5],
	}
	draw.BiLinear.Transform(dst, aff, img, img.Bounds(), draw.Src, nil)
	return dst
}

// WarpField maps a field through t into a width×height frame by inverse
// mapping with bilinear sampling. Destination cells that map outside the
// source are zero. Returns an error if t is singular.
func WarpField(f *Field, t geom.Affine, width, height int) (*Field, error) {
	inv, err := t.Invert()
	if err != nil {
		return nil, fmt.Errorf("field: warp: %w", err)
	}
	out := New(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src := inv.ApplyPoint(geom.Point{X: float64(x), Y: float64(y)})
			if src.X < 0 || src.X > float64(f.w-1) || src.Y < 0 || src.Y > float64(f.h-1) {
				continue
			}
			out.data[y*out.w+x] = f.Sample(src.X, src.Y)
		}
	}
	return out, nil
}

// RefineLocalization warps the original chip into the full-resolution
// frame the contour tracer runs in.
//
// pre maps original coordinates into the resized frame and loc maps the
// resized frame into the localized frame (both width×height). The refined
// frame is scale·width × scale·height; the returned transform maps
// original coordinates into it, and is also what the caller uses to map
// anchor keypoints before tracing.
//
// The localized mask is upscaled into the same frame.
func RefineLocalization(img image.Image, mask *Field, pre, loc geom.Affine, scale, width, height int) (*image.NRGBA, *Field, geom.Affine, error) {
	if scale <= 0 {
		return nil, nil, geom.Affine{}, fmt.Errorf("field: refine: scale must be positive, got %d", scale)
	}
	up := geom.Scale(float64(scale), float64(scale))
	full := geom.Compose(up, geom.Compose(loc, pre))

	refined := Warp(img, full, scale*width, scale*height)
	refinedMask, err := WarpField(mask, up, scale*width, scale*height)
	if err != nil {
		return nil, nil, geom.Affine{}, err
	}
	return refined, refinedMask, full, nil
}
