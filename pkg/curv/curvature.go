// Package curv computes multi-scale oriented curvature along a traced
// edge and turns it into fixed-length, unit-norm descriptors suitable
// for nearest-neighbor identification.
//
// The curvature measure is scale-invariant by construction: radii are
// fractions of the edge's own extent, so the same scale factors describe
// a calf and an adult at comparable resolutions.
package curv

import (
	"image"
	"math"
)

// Oriented computes the oriented curvature of an edge at the given scale
// factors. The result has one row per edge point and one column per
// scale; every value lies in [0, 1], with 0.5 meaning locally straight.
//
// For each point and radius, the contiguous run of edge points within
// that radius is compared against the straight chord between the run's
// endpoints; the mean signed deviation, normalized by the radius, is the
// curvature.
//
// The radius for scale s is s × (max − min) of the edge's secondary
// coordinate, so identical scale factors adapt to each individual.
//
// transposeDims selects the axis convention: false treats points as
// (x, y) directly (dorsal fins); true swaps the axes and reverses the
// sequence so the curvature sign stays positive (flukes).
//
// Returns nil when the edge is too short or has no vertical extent;
// callers treat nil as a soft failure.
func Oriented(edge []image.Point, scales []float64, transposeDims bool) [][]float64 {
	n := len(edge)
	if n < 2 || len(scales) == 0 {
		return nil
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	if transposeDims {
		for i, p := range edge {
			j := n - 1 - i
			xs[j] = float64(p.Y)
			ys[j] = float64(p.X)
		}
	} else {
		for i, p := range edge {
			xs[i] = float64(p.X)
			ys[i] = float64(p.Y)
		}
	}

	minY, maxY := ys[0], ys[0]
	for _, y := range ys[1:] {
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	extent := maxY - minY
	if extent == 0 {
		return nil
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, len(scales))
	}

	for j, s := range scales {
		r := s * extent
		if r <= 0 {
			return nil
		}
		r2 := r * r
		for i := 0; i < n; i++ {
			out[i][j] = pointCurvature(xs, ys, i, r, r2)
		}
	}
	return out
}

// pointCurvature measures the deviation of the local run around index i
// from the straight chord spanning it, normalized into [0, 1].
func pointCurvature(xs, ys []float64, i int, r, r2 float64) float64 {
	n := len(xs)
	inside := func(k int) bool {
		dx := xs[k] - xs[i]
		dy := ys[k] - ys[i]
		return dx*dx+dy*dy <= r2
	}

	lo := i
	for lo > 0 && inside(lo-1) {
		lo--
	}
	hi := i
	for hi < n-1 && inside(hi+1) {
		hi++
	}
	if hi == lo {
		return 0.5
	}

	cx := xs[hi] - xs[lo]
	cy := ys[hi] - ys[lo]
	clen := math.Hypot(cx, cy)
	if clen == 0 {
		return 0.5
	}

	// Mean signed perpendicular distance of the run from the chord.
	var sum float64
	for k := lo; k <= hi; k++ {
		sum += (cx*(ys[k]-ys[lo]) - cy*(xs[k]-xs[lo])) / clen
	}
	mean := sum / float64(hi-lo+1)

	v := 0.5 + mean/(2*r)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
