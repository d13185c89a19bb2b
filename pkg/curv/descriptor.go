package curv

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DescriptorConfig controls descriptor extraction from a curvature matrix.
type DescriptorConfig struct {
	// CurvLength is the row count the curvature matrix is resampled to
	// before keypoint selection. Default: 1024.
	CurvLength int

	// NumKeypoints caps the number of selected keypoints, including the
	// two mandatory endpoints. Default: 32.
	NumKeypoints int

	// FeatDim is the length of each descriptor vector. Default: 32.
	FeatDim int

	// Uniform selects evenly spaced keypoints instead of adaptive
	// curvature maxima.
	Uniform bool
}

// SetDefaults fills zero fields with their documented defaults.
func (c *DescriptorConfig) SetDefaults() {
	if c.CurvLength == 0 {
		c.CurvLength = 1024
	}
	if c.NumKeypoints == 0 {
		c.NumKeypoints = 32
	}
	if c.FeatDim == 0 {
		c.FeatDim = 32
	}
}

// Validate reports a configuration error. It is checked once before any
// subject is processed.
func (c *DescriptorConfig) Validate() error {
	if c.CurvLength < 2 {
		return fmt.Errorf("curv: CurvLength must be >= 2, got %d", c.CurvLength)
	}
	if c.NumKeypoints < 2 {
		return fmt.Errorf("curv: NumKeypoints must be >= 2, got %d", c.NumKeypoints)
	}
	if c.FeatDim < 1 {
		return fmt.Errorf("curv: FeatDim must be positive, got %d", c.FeatDim)
	}
	return nil
}

// Keypoints selects keypoint indices along a resampled curvature matrix.
// Indices range over [0, len(resampled)], where the final index is the
// exclusive end of the curve; 0 and len(resampled) are always included.
//
// With uniform selection the indices are evenly spaced. Otherwise they
// come from local maxima of the last (highest-scale) column, ranked by
// curvature magnitude descending and capped at num−2; a maximum at index
// 0 or 1 is discarded to avoid degenerate zero-length spans. The result
// is sorted ascending.
func Keypoints(resampled [][]float64, num int, uniform bool) []int {
	l := len(resampled)
	if l == 0 || num < 2 {
		return nil
	}

	if uniform {
		ks := make([]int, num)
		for i := range ks {
			ks[i] = i * l / (num - 1)
		}
		ks[num-1] = l
		return dedupSorted(ks)
	}

	last := len(resampled[0]) - 1
	var maxima []int
	for i := 1; i < l-1; i++ {
		if resampled[i][last] > resampled[i-1][last] && resampled[i][last] > resampled[i+1][last] {
			maxima = append(maxima, i)
		}
	}

	// Rank by magnitude descending, index ascending for equal values.
	sort.SliceStable(maxima, func(a, b int) bool {
		va, vb := resampled[maxima[a]][last], resampled[maxima[b]][last]
		if va != vb {
			return va > vb
		}
		return maxima[a] < maxima[b]
	})
	if len(maxima) > num-2 {
		maxima = maxima[:num-2]
	}
	sort.Ints(maxima)
	if len(maxima) > 0 && maxima[0] <= 1 {
		maxima = maxima[1:]
	}

	ks := make([]int, 0, len(maxima)+2)
	ks = append(ks, 0)
	ks = append(ks, maxima...)
	ks = append(ks, l)
	return dedupSorted(ks)
}

func dedupSorted(ks []int) []int {
	out := ks[:1]
	for _, k := range ks[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}

// Descriptors derives one descriptor matrix per scale from a curvature
// matrix. Rows of curv are positions along the trailing edge; columns are
// scales. The result is indexed by scale column; each entry holds one
// unit-L2-norm vector of length FeatDim per unordered keypoint pair.
//
// A nil curvature matrix yields (nil, nil): the upstream stage already
// failed and this stage short-circuits. A descriptor that cannot be
// normalized is an internal defect and is returned as an error.
func Descriptors(curv [][]float64, cfg DescriptorConfig) ([][][]float32, error) {
	if curv == nil {
		return nil, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(curv) == 0 || len(curv[0]) == 0 {
		return nil, nil
	}
	nScales := len(curv[0])

	resampled := curv
	if len(curv) != cfg.CurvLength {
		resampled = Resample(curv, cfg.CurvLength)
	}

	keypoints := Keypoints(resampled, cfg.NumKeypoints, cfg.Uniform)
	pairs := spanPairs(keypoints)
	if len(pairs) == 0 {
		return nil, fmt.Errorf("curv: no non-degenerate keypoint span")
	}

	out := make([][][]float32, nScales)
	for s := range out {
		out[s] = make([][]float32, len(pairs))
	}

	vec := make([]float64, cfg.FeatDim)
	for pi, pair := range pairs {
		sub := resampled[pair[0]:pair[1]]
		feat := Resample(sub, cfg.FeatDim)

		for s := 0; s < nScales; s++ {
			for i := 0; i < cfg.FeatDim; i++ {
				vec[i] = feat[i][s]
			}
			norm := floats.Norm(vec, 2)
			if norm == 0 {
				return nil, fmt.Errorf("curv: zero-norm descriptor for span [%d, %d) scale %d",
					pair[0], pair[1], s)
			}
			f := make([]float32, cfg.FeatDim)
			for i, v := range vec {
				f[i] = float32(v / norm)
			}
			if err := checkUnit(f); err != nil {
				return nil, err
			}
			out[s][pi] = f
		}
	}
	return out, nil
}

// spanPairs returns every unordered pair of keypoints as [start, end)
// spans. Keypoints are strictly increasing, so every span is non-empty.
func spanPairs(keypoints []int) [][2]int {
	var pairs [][2]int
	for i := 0; i < len(keypoints); i++ {
		for j := i + 1; j < len(keypoints); j++ {
			pairs = append(pairs, [2]int{keypoints[i], keypoints[j]})
		}
	}
	return pairs
}

// checkUnit verifies the unit-norm invariant. Violation means a bug in
// the resampling or normalization math, never a property of the input.
func checkUnit(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1) >= 1e-6 {
		return fmt.Errorf("curv: descriptor norm %.9f deviates from 1", math.Sqrt(sum))
	}
	return nil
}
