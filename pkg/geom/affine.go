// Package geom provides 2-D affine transforms for mapping points between
// the coordinate frames of the identification pipeline (original chip,
// resized frame, localized frame, refined frame).
//
// Transforms are 3×3 homogeneous matrices. They are immutable values:
// every operation returns a new [Affine].
package geom

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned by [Affine.Invert] when the transform cannot be
// inverted. A singular transform indicates a defect in the stage that
// produced it, so callers should surface this error rather than skip it.
var ErrSingular = errors.New("geom: singular transform")

// Point is a 2-D point. X is the horizontal (column) coordinate, Y the
// vertical (row) coordinate.
type Point struct {
	X, Y float64
}

// Affine is a 3×3 homogeneous transform, stored row-major.
// The zero value is not useful; start from [Identity] or a builder.
type Affine struct {
	m [9]float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{m: [9]float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}}
}

// Scale returns a transform scaling x by sx and y by sy.
func Scale(sx, sy float64) Affine {
	return Affine{m: [9]float64{
		sx, 0, 0,
		0, sy, 0,
		0, 0, 1,
	}}
}

// Translate returns a transform shifting points by (tx, ty).
func Translate(tx, ty float64) Affine {
	return Affine{m: [9]float64{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	}}
}

// FlipX returns a horizontal mirror across the vertical centerline of a
// frame of the given width: x' = width − x.
func FlipX(width float64) Affine {
	return Affine{m: [9]float64{
		-1, 0, width,
		0, 1, 0,
		0, 0, 1,
	}}
}

// FromRows builds a transform from the nine row-major matrix entries.
func FromRows(rows [9]float64) Affine {
	return Affine{m: rows}
}

// Rows returns the nine row-major matrix entries.
func (a Affine) Rows() [9]float64 {
	return a.m
}

// Compose returns a·b: the transform that applies b first, then a.
// Composition is associative but not commutative.
func Compose(a, b Affine) Affine {
	var out Affine
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a.m[i*3+k] * b.m[k*3+j]
			}
			out.m[i*3+j] = s
		}
	}
	return out
}

// Then returns t·a: a applied first, then t.
func (a Affine) Then(t Affine) Affine {
	return Compose(t, a)
}

// Invert returns the inverse transform.
// Returns [ErrSingular] if the matrix is not invertible.
func (a Affine) Invert() (Affine, error) {
	src := mat.NewDense(3, 3, append([]float64(nil), a.m[:]...))
	var inv mat.Dense
	if err := inv.Inverse(src); err != nil {
		return Affine{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	var out Affine
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.m[i*3+j] = inv.At(i, j)
		}
	}
	return out, nil
}

// ApplyPoint maps a single point through the transform.
func (a Affine) ApplyPoint(p Point) Point {
	x := a.m[0]*p.X + a.m[1]*p.Y + a.m[2]
	y := a.m[3]*p.X + a.m[4]*p.Y + a.m[5]
	w := a.m[6]*p.X + a.m[7]*p.Y + a.m[8]
	if w != 0 && w != 1 {
		x /= w
		y /= w
	}
	return Point{X: x, Y: y}
}

// Apply maps a slice of points through the transform, preserving order
// and count. The input slice is not modified.
func (a Affine) Apply(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = a.ApplyPoint(p)
	}
	return out
}

// String renders the matrix for logs and test failures.
func (a Affine) String() string {
	return fmt.Sprintf("[[%g %g %g] [%g %g %g] [%g %g %g]]",
		a.m[0], a.m[1], a.m[2],
		a.m[3], a.m[4], a.m[5],
		a.m[6], a.m[7], a.m[8])
}
