package curv

import (
	"fmt"
	"image"
	"math"
)

// GaussPair is one difference-of-Gaussians scale: the height signal of
// the edge is smoothed at both sigmas and the difference becomes the
// descriptor signal.
type GaussPair struct {
	SigmaWide   float64
	SigmaNarrow float64
}

// DiffOfGauss computes a descriptor matrix directly from a raw trailing
// edge, bypassing the curvature matrix: the edge's height profile is
// band-pass filtered with a difference of Gaussians and then sampled over
// keypoint spans exactly like the curvature descriptors.
//
// One matrix is returned per GaussPair. A nil or too-short edge yields
// (nil, nil) as a soft failure.
func DiffOfGauss(edge []image.Point, pairs []GaussPair, cfg DescriptorConfig) ([][][]float32, error) {
	if len(edge) < 2 {
		return nil, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if p.SigmaWide <= 0 || p.SigmaNarrow <= 0 {
			return nil, fmt.Errorf("curv: gauss sigmas must be positive, got %+v", p)
		}
	}

	// Height profile, resampled to the working length.
	profile := make([][]float64, len(edge))
	for i, p := range edge {
		profile[i] = []float64{float64(p.Y)}
	}
	resampled := Resample(profile, cfg.CurvLength)
	signal := make([]float64, cfg.CurvLength)
	for i, row := range resampled {
		signal[i] = row[0]
	}

	// One band-passed column per scale pair.
	dog := make([][]float64, cfg.CurvLength)
	for i := range dog {
		dog[i] = make([]float64, len(pairs))
	}
	for j, p := range pairs {
		wide := gaussianSmooth(signal, p.SigmaWide)
		narrow := gaussianSmooth(signal, p.SigmaNarrow)
		for i := range dog {
			dog[i][j] = narrow[i] - wide[i]
		}
	}

	// A flat profile band-passes to all zeros; that is a featureless
	// edge, not a math defect.
	flat := true
	for i := range dog {
		for _, v := range dog[i] {
			if math.Abs(v) > 1e-12 {
				flat = false
				break
			}
		}
		if !flat {
			break
		}
	}
	if flat {
		return nil, nil
	}

	return Descriptors(dog, cfg)
}

// gaussianSmooth convolves the signal with a normalized Gaussian kernel,
// reflecting at the borders.
func gaussianSmooth(signal []float64, sigma float64) []float64 {
	radius := int(3*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	n := len(signal)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var acc float64
		for k := -radius; k <= radius; k++ {
			j := reflect(i+k, n)
			acc += signal[j] * kernel[k+radius]
		}
		out[i] = acc
	}
	return out
}

// reflect maps an out-of-range index back into [0, n) by mirroring.
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - 1 - i
		}
	}
	return i
}
