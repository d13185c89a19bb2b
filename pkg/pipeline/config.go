// Package pipeline orchestrates descriptor extraction and identity
// scoring over batches of photographed subjects. Stages are pure per
// subject; a stage that finds nothing usable marks the subject failed
// and every later stage short-circuits, without disturbing sibling
// subjects in the batch.
package pipeline

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wildseas/finprint/pkg/cache"
	"github.com/wildseas/finprint/pkg/contour"
	"github.com/wildseas/finprint/pkg/curv"
	"github.com/wildseas/finprint/pkg/identify"
)

// PreprocessConfig controls image normalization before tracing.
type PreprocessConfig struct {
	// Width and Height of the normalized frame the localization model
	// consumes. Defaults: 256×256.
	Width  int
	Height int

	// RefineScale upsamples the localized frame before tracing, so the
	// outline is sampled at sub-model resolution. Default: 4.
	RefineScale int
}

func (c *PreprocessConfig) setDefaults() {
	if c.Width <= 0 {
		c.Width = 256
	}
	if c.Height <= 0 {
		c.Height = 256
	}
	if c.RefineScale <= 0 {
		c.RefineScale = 4
	}
}

// CurvatureConfig controls the multi-scale curvature stage.
type CurvatureConfig struct {
	// Scales are the curvature radii as fractions of the edge's
	// secondary-coordinate extent. Defaults to the dorsal-fin set.
	Scales []float64

	// TransposeDims swaps the primary and secondary coordinate, for
	// contours whose distinguishing edge runs vertically (flukes).
	TransposeDims bool
}

func (c *CurvatureConfig) setDefaults() {
	if len(c.Scales) == 0 {
		c.Scales = []float64{0.04, 0.06, 0.08, 0.10}
	}
}

// Config carries every stage's parameters. The zero value, after
// SetDefaults, is a working dorsal-fin configuration.
type Config struct {
	Preprocess PreprocessConfig
	Keypoints  contour.KeypointConfig
	Trace      contour.TraceConfig
	Curvature  CurvatureConfig
	Descriptor curv.DescriptorConfig

	// Gauss optionally adds difference-of-Gaussians descriptors over the
	// raw trailing edge, one extra descriptor group per pair. Empty
	// disables the variant.
	Gauss []curv.GaussPair

	// Index parameterizes reference index construction.
	Index identify.IndexConfig

	// Neighbors is the LNBNN k. Default: 2.
	Neighbors int
}

// SetDefaults fills every unset option with its documented default.
func (c *Config) SetDefaults() {
	c.Preprocess.setDefaults()
	c.Curvature.setDefaults()
	c.Descriptor.SetDefaults()
	if c.Neighbors <= 0 {
		c.Neighbors = 2
	}
	if c.Index.Dim == 0 {
		c.Index.Dim = c.Descriptor.FeatDim
	}
}

// Validate rejects unusable parameters before any subject is processed.
func (c *Config) Validate() error {
	for i, s := range c.Curvature.Scales {
		if s <= 0 {
			return fmt.Errorf("pipeline: curvature scale %d must be positive, got %v", i, s)
		}
	}
	if err := c.Trace.Validate(); err != nil {
		return err
	}
	if err := c.Descriptor.Validate(); err != nil {
		return err
	}
	for _, p := range c.Gauss {
		if p.SigmaWide <= 0 || p.SigmaNarrow <= 0 {
			return fmt.Errorf("pipeline: gauss sigmas must be positive, got %+v", p)
		}
	}
	if c.Neighbors < 1 {
		return fmt.Errorf("pipeline: Neighbors must be at least 1, got %d", c.Neighbors)
	}
	if c.Index.Dim != c.Descriptor.FeatDim {
		return fmt.Errorf("pipeline: Index.Dim %d does not match Descriptor.FeatDim %d",
			c.Index.Dim, c.Descriptor.FeatDim)
	}
	return nil
}

// Fingerprint returns a content key over every parameter, used to
// invalidate cached stage artifacts when the configuration changes.
func (c *Config) Fingerprint() (string, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("pipeline: fingerprinting config: %w", err)
	}
	return cache.ContentKey(b), nil
}

// ScaleKey formats a curvature scale as a stable map key, so descriptor
// groups survive serialization without float round-tripping.
func ScaleKey(scale float64) string {
	return strconv.FormatFloat(scale, 'f', 4, 64)
}

// GaussKey formats a difference-of-Gaussians pair as a descriptor group
// key, disjoint from curvature scale keys.
func GaussKey(p curv.GaussPair) string {
	return "dog-" + strconv.FormatFloat(p.SigmaWide, 'f', 2, 64) +
		"-" + strconv.FormatFloat(p.SigmaNarrow, 'f', 2, 64)
}
