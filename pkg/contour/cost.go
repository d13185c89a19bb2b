package contour

import (
	"fmt"
	"math"

	"github.com/wildseas/finprint/pkg/field"
)

// CostConfig tunes the per-pixel cost the tracer minimizes.
//
// The exact weighting between segmentation likelihood and gradient
// magnitude is empirical; the defaults favor the segmentation signal with
// the gradient as a refinement, which keeps the path on the high-contrast
// side of high-confidence pixels.
type CostConfig struct {
	// MaskWeight scales the inverse-foreground-likelihood term.
	// Default: 0.8.
	MaskWeight float64

	// GradWeight scales the inverse-gradient-magnitude term.
	// Default: 0.2.
	GradWeight float64

	// Exponent sharpens the likelihood term: (1 − p)^Exponent.
	// Default: 2.
	Exponent float64

	// Floor is a small positive cost added to every pixel so that edge
	// weights stay strictly positive. Default: 1e-3.
	Floor float64
}

func (c *CostConfig) setDefaults() {
	if c.MaskWeight == 0 {
		c.MaskWeight = 0.8
	}
	if c.GradWeight == 0 {
		c.GradWeight = 0.2
	}
	if c.Exponent == 0 {
		c.Exponent = 2
	}
	if c.Floor == 0 {
		c.Floor = 1e-3
	}
}

func (c *CostConfig) validate() error {
	if c.MaskWeight < 0 || c.GradWeight < 0 {
		return fmt.Errorf("contour: cost weights must be non-negative, got mask=%g grad=%g",
			c.MaskWeight, c.GradWeight)
	}
	if c.MaskWeight == 0 && c.GradWeight == 0 {
		return fmt.Errorf("contour: at least one cost weight must be positive")
	}
	if c.Floor <= 0 {
		return fmt.Errorf("contour: cost floor must be positive, got %g", c.Floor)
	}
	return nil
}

// costGrid precomputes the per-pixel cost from the segmentation field and
// the image gradient. Low cost means "a good boundary pixel": confident
// foreground and strong local contrast.
func costGrid(seg, grad *field.Field, cfg CostConfig) []float64 {
	w, h := seg.Width(), seg.Height()
	cost := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := clamp01(float64(seg.At(x, y)))
			c := cfg.MaskWeight * math.Pow(1-p, cfg.Exponent)
			if grad != nil {
				c += cfg.GradWeight * (1 - clamp01(float64(grad.At(x, y))))
			}
			cost[y*w+x] = c + cfg.Floor
		}
	}
	return cost
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
