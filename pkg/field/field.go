// Package field provides the dense 2-D scalar fields consumed by the
// identification pipeline: foreground-probability masks from the external
// segmentation model, grayscale image channels, and gradient magnitudes.
//
// A [Field] is a row-major float32 grid. Values are conventionally in
// [0, 1] (probabilities, normalized intensities) but the type does not
// enforce a range. Fields produced upstream are consumed read-only
// downstream; nothing in this package mutates a field it did not create.
package field

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Field is a dense 2-D float32 grid with row-major storage.
type Field struct {
	w, h int
	data []float32
}

// New creates a zero-filled field of the given size.
// Panics if either dimension is not positive.
func New(w, h int) *Field {
	if w <= 0 || h <= 0 {
		panic(fmt.Sprintf("field: invalid size %dx%d", w, h))
	}
	return &Field{w: w, h: h, data: make([]float32, w*h)}
}

// FromImage converts an image to a field of normalized [0, 1] luminance.
func FromImage(img image.Image) *Field {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			f.data[y*f.w+x] = float32(g.Y) / 65535
		}
	}
	return f
}

// Width returns the number of columns.
func (f *Field) Width() int { return f.w }

// Height returns the number of rows.
func (f *Field) Height() int { return f.h }

// At returns the value at column x, row y.
// Panics if the coordinate is out of bounds.
func (f *Field) At(x, y int) float32 {
	if !f.InBounds(x, y) {
		panic(fmt.Sprintf("field: At(%d, %d) out of bounds %dx%d", x, y, f.w, f.h))
	}
	return f.data[y*f.w+x]
}

// Set stores v at column x, row y.
func (f *Field) Set(x, y int, v float32) {
	if !f.InBounds(x, y) {
		panic(fmt.Sprintf("field: Set(%d, %d) out of bounds %dx%d", x, y, f.w, f.h))
	}
	f.data[y*f.w+x] = v
}

// InBounds reports whether (x, y) is a valid coordinate.
func (f *Field) InBounds(x, y int) bool {
	return x >= 0 && x < f.w && y >= 0 && y < f.h
}

// Sample returns the bilinearly interpolated value at a fractional
// coordinate. Coordinates outside the grid clamp to the border.
func (f *Field) Sample(x, y float64) float32 {
	x = clamp(x, 0, float64(f.w-1))
	y = clamp(y, 0, float64(f.h-1))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, f.w-1), min(y0+1, f.h-1)
	fx, fy := float32(x-float64(x0)), float32(y-float64(y0))

	top := f.data[y0*f.w+x0]*(1-fx) + f.data[y0*f.w+x1]*fx
	bot := f.data[y1*f.w+x0]*(1-fx) + f.data[y1*f.w+x1]*fx
	return top*(1-fy) + bot*fy
}

// MaxValue returns the largest value in the field, or 0 for an all-zero
// field.
func (f *Field) MaxValue() float32 {
	var m float32
	for _, v := range f.data {
		if v > m {
			m = v
		}
	}
	return m
}

// Binarize returns a new field with 1 where f >= threshold, else 0.
func (f *Field) Binarize(threshold float32) *Field {
	out := New(f.w, f.h)
	for i, v := range f.data {
		if v >= threshold {
			out.data[i] = 1
		}
	}
	return out
}

// Gradient computes the Sobel gradient magnitude of the field,
// normalized so the maximum magnitude is 1. Border pixels replicate
// their nearest interior neighbor.
func (f *Field) Gradient() *Field {
	out := New(f.w, f.h)
	at := func(x, y int) float64 {
		x = clampInt(x, 0, f.w-1)
		y = clampInt(y, 0, f.h-1)
		return float64(f.data[y*f.w+x])
	}
	var maxMag float64
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			mag := math.Hypot(gx, gy)
			out.data[y*f.w+x] = float32(mag)
			if mag > maxMag {
				maxMag = mag
			}
		}
	}
	if maxMag > 0 {
		for i := range out.data {
			out.data[i] /= float32(maxMag)
		}
	}
	return out
}

// ToGray renders the field as an 8-bit grayscale image, clamping values
// to [0, 1].
func (f *Field) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.w, f.h))
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			v := clamp(float64(f.data[y*f.w+x]), 0, 1)
			img.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	out := New(f.w, f.h)
	copy(out.data, f.data)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
