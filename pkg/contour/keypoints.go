package contour

import (
	"image"

	"github.com/wildseas/finprint/pkg/field"
)

// KeypointConfig controls anchor-point detection.
type KeypointConfig struct {
	// Threshold is the minimum foreground probability for a column to be
	// considered part of the silhouette. Default: 0.5.
	Threshold float32

	// MinSeparation is the minimum horizontal distance between the two
	// anchors, as a fraction of the field width. Anchors closer than this
	// are rejected as unreliable. Default: 0.2.
	MinSeparation float64
}

func (c *KeypointConfig) setDefaults() {
	if c.Threshold == 0 {
		c.Threshold = 0.5
	}
	if c.MinSeparation == 0 {
		c.MinSeparation = 0.2
	}
}

// FindKeypoints locates the start and end anchors of the edge of interest
// on a segmentation field: the leftmost and rightmost silhouette columns
// whose confidence clears the threshold, taking in each column the most
// confident pixel that also lies inside the localization mask.
//
// ok is false when the field has no confident foreground or the two
// anchors are too close together. This is a normal no-match outcome;
// downstream stages treat it as a soft failure.
func FindKeypoints(seg, mask *field.Field, cfg KeypointConfig) (start, end image.Point, ok bool) {
	cfg.setDefaults()
	if mask != nil && (mask.Width() != seg.Width() || mask.Height() != seg.Height()) {
		return image.Point{}, image.Point{}, false
	}

	// bestInColumn returns the most confident masked pixel of column x.
	bestInColumn := func(x int) (image.Point, bool) {
		bestY := -1
		var bestV float32
		for y := 0; y < seg.Height(); y++ {
			if mask != nil && mask.At(x, y) <= 0 {
				continue
			}
			v := seg.At(x, y)
			if v >= cfg.Threshold && v > bestV {
				bestV = v
				bestY = y
			}
		}
		if bestY < 0 {
			return image.Point{}, false
		}
		return image.Point{X: x, Y: bestY}, true
	}

	found := false
	for x := 0; x < seg.Width(); x++ {
		if p, hit := bestInColumn(x); hit {
			start = p
			found = true
			break
		}
	}
	if !found {
		return image.Point{}, image.Point{}, false
	}

	for x := seg.Width() - 1; x >= 0; x-- {
		if p, hit := bestInColumn(x); hit {
			end = p
			break
		}
	}

	minSep := int(cfg.MinSeparation * float64(seg.Width()))
	if end.X-start.X < minSep {
		return image.Point{}, image.Point{}, false
	}
	return start, end, true
}
