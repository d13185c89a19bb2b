package curv

import (
	"image"
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// arcEdge samples a quarter circle of the given radius as integer points.
func arcEdge(r int) []image.Point {
	var pts []image.Point
	n := 4 * r
	for i := 0; i <= n; i++ {
		theta := float64(i) / float64(n) * math.Pi / 2
		pts = append(pts, image.Pt(
			int(float64(r)*math.Cos(theta)+0.5),
			int(float64(r)*math.Sin(theta)+0.5),
		))
	}
	return pts
}

// slopeEdge is a straight diagonal edge.
func slopeEdge(n int) []image.Point {
	pts := make([]image.Point, n)
	for i := range pts {
		pts[i] = image.Pt(i, i)
	}
	return pts
}

func norm32(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

var testScales = []float64{0.04, 0.06, 0.08, 0.10}

// ---------------------------------------------------------------------------
// Oriented curvature
// ---------------------------------------------------------------------------

func TestOrientedBounds(t *testing.T) {
	for _, edge := range [][]image.Point{arcEdge(60), slopeEdge(100)} {
		m := Oriented(edge, testScales, false)
		if m == nil {
			t.Fatal("Oriented returned nil for a valid edge")
		}
		if len(m) != len(edge) {
			t.Fatalf("rows = %d, want %d", len(m), len(edge))
		}
		for i, row := range m {
			if len(row) != len(testScales) {
				t.Fatalf("row %d has %d cols, want %d", i, len(row), len(testScales))
			}
			for j, v := range row {
				if v < 0 || v > 1 {
					t.Fatalf("curvature[%d][%d] = %v outside [0, 1]", i, j, v)
				}
			}
		}
	}
}

func TestOrientedStraightIsNeutral(t *testing.T) {
	m := Oriented(slopeEdge(200), testScales, false)
	// Interior of a straight edge deviates nowhere from its chord.
	for i := 20; i < 180; i++ {
		for j := range testScales {
			if math.Abs(m[i][j]-0.5) > 0.05 {
				t.Fatalf("straight edge curvature[%d][%d] = %v, want ~0.5", i, j, m[i][j])
			}
		}
	}
}

func TestOrientedArcBends(t *testing.T) {
	m := Oriented(arcEdge(80), testScales, false)
	mid := len(m) / 2
	last := len(testScales) - 1
	if math.Abs(m[mid][last]-0.5) < 0.01 {
		t.Errorf("arc midpoint curvature = %v, want clearly away from 0.5", m[mid][last])
	}
}

func TestOrientedDegenerate(t *testing.T) {
	if m := Oriented(nil, testScales, false); m != nil {
		t.Error("Oriented(nil) should be nil")
	}
	if m := Oriented([]image.Point{{X: 1, Y: 1}}, testScales, false); m != nil {
		t.Error("Oriented on one point should be nil")
	}
	// Horizontal edge has no vertical extent, so no radius can be formed.
	flat := make([]image.Point, 50)
	for i := range flat {
		flat[i] = image.Pt(i, 7)
	}
	if m := Oriented(flat, testScales, false); m != nil {
		t.Error("Oriented on a zero-extent edge should be nil")
	}
}

func TestOrientedTransposeDims(t *testing.T) {
	edge := arcEdge(40)
	plain := Oriented(edge, testScales, false)

	// Pre-swapping the axes cancels the transpose's axis swap, leaving a
	// pure sequence reversal: the chord direction flips, so curvature
	// mirrors around the neutral 0.5.
	swapped := make([]image.Point, len(edge))
	for i, p := range edge {
		swapped[i] = image.Pt(p.Y, p.X)
	}
	transposed := Oriented(swapped, testScales, true)
	if transposed == nil {
		t.Fatal("transposed Oriented returned nil")
	}
	n := len(plain)
	for i := 0; i < n; i++ {
		for j := range testScales {
			if math.Abs(plain[i][j]+transposed[n-1-i][j]-1) > 1e-9 {
				t.Fatalf("transpose mismatch at %d/%d: %v vs %v",
					i, j, plain[i][j], transposed[n-1-i][j])
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Resample
// ---------------------------------------------------------------------------

func TestResampleEndpoints(t *testing.T) {
	m := [][]float64{{0, 10}, {1, 20}, {2, 30}, {3, 40}}
	out := Resample(m, 7)
	if len(out) != 7 {
		t.Fatalf("rows = %d, want 7", len(out))
	}
	if out[0][0] != 0 || out[0][1] != 10 {
		t.Errorf("first row = %v, want [0 10]", out[0])
	}
	if out[6][0] != 3 || out[6][1] != 40 {
		t.Errorf("last row = %v, want [3 40]", out[6])
	}
	// Linear data stays linear under linear resampling.
	for i, row := range out {
		want := float64(i) * 3 / 6
		if math.Abs(row[0]-want) > 1e-9 {
			t.Errorf("row %d col 0 = %v, want %v", i, row[0], want)
		}
	}
}

func TestResampleSingleRow(t *testing.T) {
	out := Resample([][]float64{{5, 6}}, 4)
	if len(out) != 4 {
		t.Fatalf("rows = %d, want 4", len(out))
	}
	for _, row := range out {
		if row[0] != 5 || row[1] != 6 {
			t.Fatalf("broadcast row = %v, want [5 6]", row)
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	if Resample(nil, 8) != nil {
		t.Error("Resample(nil) should be nil")
	}
	if Resample([][]float64{{1}}, 0) != nil {
		t.Error("Resample to 0 rows should be nil")
	}
}

// ---------------------------------------------------------------------------
// Keypoints
// ---------------------------------------------------------------------------

func flatSignal(l int) [][]float64 {
	m := make([][]float64, l)
	for i := range m {
		m[i] = []float64{0.5}
	}
	return m
}

func TestKeypointsFlatSignal(t *testing.T) {
	ks := Keypoints(flatSignal(1024), 4, false)
	if len(ks) != 2 || ks[0] != 0 || ks[1] != 1024 {
		t.Fatalf("flat-signal keypoints = %v, want [0 1024]", ks)
	}
	pairs := spanPairs(ks)
	if len(pairs) != 1 || pairs[0] != [2]int{0, 1024} {
		t.Fatalf("flat-signal pairs = %v, want [(0, 1024)]", pairs)
	}
}

func TestKeypointsBoundsAndEndpoints(t *testing.T) {
	m := flatSignal(512)
	// Plant maxima at a few interior positions.
	for _, i := range []int{40, 170, 300, 450} {
		m[i][0] = 0.9
	}
	ks := Keypoints(m, 4, false)
	if len(ks) > 4 {
		t.Errorf("got %d keypoints, want <= 4", len(ks))
	}
	if ks[0] != 0 || ks[len(ks)-1] != 512 {
		t.Errorf("keypoints %v missing mandatory endpoints 0 and 512", ks)
	}
	for i := 1; i < len(ks); i++ {
		if ks[i] <= ks[i-1] {
			t.Fatalf("keypoints %v not strictly increasing", ks)
		}
	}
}

func TestKeypointsRankedByMagnitude(t *testing.T) {
	m := flatSignal(256)
	m[50][0] = 0.7
	m[120][0] = 0.95 // strongest
	m[200][0] = 0.8
	ks := Keypoints(m, 4, false) // room for 2 maxima
	want := []int{0, 120, 200, 256}
	if len(ks) != len(want) {
		t.Fatalf("keypoints = %v, want %v", ks, want)
	}
	for i := range want {
		if ks[i] != want[i] {
			t.Fatalf("keypoints = %v, want %v", ks, want)
		}
	}
}

func TestKeypointsDiscardNearStart(t *testing.T) {
	m := flatSignal(128)
	m[1][0] = 0.9 // would create a zero-length leading span
	ks := Keypoints(m, 8, false)
	for _, k := range ks[1:] {
		if k == 1 {
			t.Fatalf("keypoints %v kept the degenerate index 1", ks)
		}
	}
}

func TestKeypointsUniform(t *testing.T) {
	ks := Keypoints(flatSignal(1000), 5, true)
	want := []int{0, 250, 500, 750, 1000}
	if len(ks) != len(want) {
		t.Fatalf("uniform keypoints = %v, want %v", ks, want)
	}
	for i := range want {
		if ks[i] != want[i] {
			t.Fatalf("uniform keypoints = %v, want %v", ks, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Descriptors
// ---------------------------------------------------------------------------

func TestDescriptorsUnitNorm(t *testing.T) {
	curvMat := Oriented(arcEdge(100), testScales, false)
	cfg := DescriptorConfig{CurvLength: 256, NumKeypoints: 6, FeatDim: 16}
	descs, err := Descriptors(curvMat, cfg)
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	if len(descs) != len(testScales) {
		t.Fatalf("got %d scales, want %d", len(descs), len(testScales))
	}
	for s, scaleDescs := range descs {
		if len(scaleDescs) == 0 {
			t.Fatalf("scale %d produced no descriptors", s)
		}
		for i, v := range scaleDescs {
			if len(v) != 16 {
				t.Fatalf("scale %d descriptor %d has dim %d, want 16", s, i, len(v))
			}
			if math.Abs(norm32(v)-1) >= 1e-6 {
				t.Fatalf("scale %d descriptor %d norm = %v", s, i, norm32(v))
			}
		}
	}
}

func TestDescriptorsPairCount(t *testing.T) {
	curvMat := Oriented(arcEdge(100), testScales, false)
	cfg := DescriptorConfig{CurvLength: 256, NumKeypoints: 5, FeatDim: 8, Uniform: true}
	descs, err := Descriptors(curvMat, cfg)
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	// 5 uniform keypoints -> C(5,2) = 10 spans.
	if got := len(descs[0]); got != 10 {
		t.Errorf("pair count = %d, want 10", got)
	}
}

func TestDescriptorsNilInput(t *testing.T) {
	descs, err := Descriptors(nil, DescriptorConfig{})
	if err != nil || descs != nil {
		t.Errorf("Descriptors(nil) = (%v, %v), want (nil, nil)", descs, err)
	}
}

func TestDescriptorsConfigValidation(t *testing.T) {
	curvMat := Oriented(arcEdge(40), testScales, false)
	if _, err := Descriptors(curvMat, DescriptorConfig{CurvLength: 1, NumKeypoints: 4, FeatDim: 8}); err == nil {
		t.Error("CurvLength=1 accepted, want error")
	}
	if _, err := Descriptors(curvMat, DescriptorConfig{CurvLength: 64, NumKeypoints: 1, FeatDim: 8}); err == nil {
		t.Error("NumKeypoints=1 accepted, want error")
	}
	if _, err := Descriptors(curvMat, DescriptorConfig{CurvLength: 64, NumKeypoints: 4, FeatDim: -3}); err == nil {
		t.Error("negative FeatDim accepted, want error")
	}
}

func TestDescriptorsDeterministic(t *testing.T) {
	curvMat := Oriented(arcEdge(60), testScales, false)
	cfg := DescriptorConfig{CurvLength: 128, NumKeypoints: 6, FeatDim: 8}
	a, err := Descriptors(curvMat, cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Descriptors(curvMat, cfg)
	for s := range a {
		for i := range a[s] {
			for d := range a[s][i] {
				if a[s][i][d] != b[s][i][d] {
					t.Fatal("descriptors differ between identical runs")
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Difference of Gaussians
// ---------------------------------------------------------------------------

func TestDiffOfGauss(t *testing.T) {
	edge := arcEdge(100)
	pairs := []GaussPair{{SigmaWide: 8, SigmaNarrow: 2}, {SigmaWide: 16, SigmaNarrow: 4}}
	cfg := DescriptorConfig{CurvLength: 256, NumKeypoints: 4, FeatDim: 16, Uniform: true}

	descs, err := DiffOfGauss(edge, pairs, cfg)
	if err != nil {
		t.Fatalf("DiffOfGauss: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d scale matrices, want 2", len(descs))
	}
	for s := range descs {
		for _, v := range descs[s] {
			if math.Abs(norm32(v)-1) >= 1e-6 {
				t.Fatalf("DoG descriptor norm = %v", norm32(v))
			}
		}
	}
}

func TestDiffOfGaussShortEdge(t *testing.T) {
	descs, err := DiffOfGauss([]image.Point{{X: 0, Y: 0}}, nil, DescriptorConfig{})
	if descs != nil || err != nil {
		t.Errorf("short edge = (%v, %v), want (nil, nil)", descs, err)
	}
}

func TestDiffOfGaussBadSigma(t *testing.T) {
	edge := arcEdge(40)
	_, err := DiffOfGauss(edge, []GaussPair{{SigmaWide: 0, SigmaNarrow: 1}}, DescriptorConfig{})
	if err == nil {
		t.Error("zero sigma accepted, want error")
	}
}
