package identify

import (
	"bytes"
	"math"
	"math/rand/v2"
	"sort"
	"testing"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func randVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func unitVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// clusterAround returns n unit-norm vectors near the given axis.
func clusterAround(rng *rand.Rand, n, dim, axis int, spread float64) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		v[axis] = 1
		for j := range v {
			v[j] += float32(rng.NormFloat64() * spread)
		}
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		norm := float32(math.Sqrt(sum))
		for j := range v {
			v[j] /= norm
		}
		out[i] = v
	}
	return out
}

func bruteNearest(vectors [][]float32, q []float32, k int) []int {
	rows := make([]int, len(vectors))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		da, db := euclidean(vectors[rows[a]], q), euclidean(vectors[rows[b]], q)
		if da != db {
			return da < db
		}
		return rows[a] < rows[b]
	})
	return rows[:k]
}

// ---------------------------------------------------------------------------
// index construction and search
// ---------------------------------------------------------------------------

func TestBuildIndexValidation(t *testing.T) {
	if _, err := BuildIndex(IndexConfig{Dim: 0}, [][]float32{{1}}, []string{"a"}); err == nil {
		t.Error("expected error for non-positive dim")
	}
	if _, err := BuildIndex(IndexConfig{Dim: 2}, nil, nil); err == nil {
		t.Error("expected error for zero rows")
	}
	if _, err := BuildIndex(IndexConfig{Dim: 2}, [][]float32{{1, 0}}, []string{"a", "b"}); err == nil {
		t.Error("expected error for label count mismatch")
	}
	if _, err := BuildIndex(IndexConfig{Dim: 2}, [][]float32{{1, 0, 0}}, []string{"a"}); err == nil {
		t.Error("expected error for row dim mismatch")
	}
}

func TestSearchRecall(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	const dim, n, k = 16, 200, 5
	vectors := randVectors(rng, n, dim)
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "x"
	}

	ix, err := BuildIndex(IndexConfig{Dim: dim}, vectors, labels)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	hits, total := 0, 0
	for q := 0; q < 50; q++ {
		query := randVectors(rng, 1, dim)[0]
		got, err := ix.Search(query, k)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != k {
			t.Fatalf("got %d neighbors, want %d", len(got), k)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Dist < got[i-1].Dist {
				t.Fatalf("neighbors out of order: %v before %v", got[i-1].Dist, got[i].Dist)
			}
		}
		want := bruteNearest(vectors, query, k)
		wantSet := make(map[int]bool, k)
		for _, r := range want {
			wantSet[r] = true
		}
		for _, nb := range got {
			total++
			if wantSet[nb.Row] {
				hits++
			}
		}
	}
	recall := float64(hits) / float64(total)
	if recall < 0.8 {
		t.Errorf("recall %.2f below 0.8", recall)
	}
}

func TestSearchExactDistances(t *testing.T) {
	vectors := [][]float32{{0, 0}, {3, 4}, {6, 8}}
	ix, err := BuildIndex(IndexConfig{Dim: 2}, vectors, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	got, err := ix.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []float32{0, 5, 10}
	for i, nb := range got {
		if math.Abs(float64(nb.Dist-want[i])) > 1e-6 {
			t.Errorf("neighbor %d: dist %v, want %v", i, nb.Dist, want[i])
		}
	}
	if got[0].Label != "a" || got[1].Label != "b" || got[2].Label != "c" {
		t.Errorf("unexpected labels: %v %v %v", got[0].Label, got[1].Label, got[2].Label)
	}
}

func TestBuildDeterminism(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 11))
	vectors := randVectors(rng, 100, 8)
	labels := make([]string, 100)
	for i := range labels {
		labels[i] = "x"
	}

	a, err := BuildIndex(IndexConfig{Dim: 8, Seed: 3}, vectors, labels)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	b, err := BuildIndex(IndexConfig{Dim: 8, Seed: 3}, vectors, labels)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	for q := 0; q < 10; q++ {
		query := randVectors(rng, 1, 8)[0]
		ra, _ := a.Search(query, 5)
		rb, _ := b.Search(query, 5)
		if len(ra) != len(rb) {
			t.Fatalf("result lengths differ: %d vs %d", len(ra), len(rb))
		}
		for i := range ra {
			if ra[i] != rb[i] {
				t.Fatalf("query %d neighbor %d differs: %+v vs %+v", q, i, ra[i], rb[i])
			}
		}
	}
}

func TestSearchValidation(t *testing.T) {
	ix, err := BuildIndex(IndexConfig{Dim: 2}, [][]float32{{1, 0}}, []string{"a"})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if _, err := ix.Search([]float32{1}, 1); err == nil {
		t.Error("expected error for query dim mismatch")
	}
	if _, err := ix.Search([]float32{1, 0}, 0); err == nil {
		t.Error("expected error for non-positive k")
	}
}

func TestIdentities(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	ix, err := BuildIndex(IndexConfig{Dim: 2}, vectors, []string{"b", "a", "b"})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	got := ix.Identities()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Identities() = %v, want [a b]", got)
	}
}

// ---------------------------------------------------------------------------
// LNBNN scoring
// ---------------------------------------------------------------------------

func TestLNBNNThreeIdentities(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	const dim = 8
	names := []string{"orca-17", "orca-22", "orca-40"}

	b := NewBuilder()
	for axis, name := range names {
		rows := clusterAround(rng, 10, dim, axis, 0.05)
		if err := b.Add(name, map[string][][]float32{"0.0200": rows}); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	ref, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	set, err := BuildIndexSet(ref, IndexConfig{})
	if err != nil {
		t.Fatalf("BuildIndexSet: %v", err)
	}

	queries := map[string][][]float32{"0.0200": clusterAround(rng, 5, dim, 1, 0.05)}
	scores, err := set.Score(queries, 2)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("got %d score keys, want 3: %v", len(scores), scores)
	}
	for _, name := range names {
		if _, ok := scores[name]; !ok {
			t.Errorf("missing identity %q in score map", name)
		}
	}
	if best := scores.Ranked()[0]; best != "orca-22" {
		t.Errorf("best match %q, want orca-22 (scores %v)", best, scores)
	}
	for name, s := range scores {
		if s > 0 {
			t.Errorf("score for %q is %v, want <= 0", name, s)
		}
	}
}

func TestLNBNNValidation(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	ix, err := BuildIndex(IndexConfig{Dim: 2}, vectors, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if _, err := LNBNN(ix, [][]float32{{1, 0}}, 0); err == nil {
		t.Error("expected error for k=0")
	}
	if _, err := LNBNN(ix, [][]float32{{1, 0}}, 3); err == nil {
		t.Error("expected error for k >= reference rows")
	}
	if _, err := LNBNN(ix, [][]float32{{1, 0}}, 2); err != nil {
		t.Errorf("k=2 on 3 rows should be valid: %v", err)
	}
}

func TestLNBNNZeroInitialized(t *testing.T) {
	// Two tight clusters; queries near one of them. The far identity
	// must still appear in the map.
	vectors := [][]float32{
		{1, 0}, {1.01, 0}, {0.99, 0},
		{0, 50}, {0, 50.01},
	}
	labels := []string{"near", "near", "near", "far", "far"}
	ix, err := BuildIndex(IndexConfig{Dim: 2}, vectors, labels)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	scores, err := LNBNN(ix, [][]float32{{1, 0}}, 2)
	if err != nil {
		t.Fatalf("LNBNN: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("got %d keys, want 2: %v", len(scores), scores)
	}
	if scores["far"] != 0 {
		t.Errorf("score for far identity = %v, want 0", scores["far"])
	}
	if scores["near"] >= 0 {
		t.Errorf("score for near identity = %v, want < 0", scores["near"])
	}
}

func TestScoreMapLinearity(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 13))
	const dim = 8
	vectors := randVectors(rng, 60, dim)
	labels := make([]string, 60)
	for i := range labels {
		labels[i] = []string{"a", "b", "c"}[i%3]
	}
	ix, err := BuildIndex(IndexConfig{Dim: dim}, vectors, labels)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	queries := randVectors(rng, 10, dim)
	whole, err := LNBNN(ix, queries, 3)
	if err != nil {
		t.Fatalf("LNBNN: %v", err)
	}

	first, err := LNBNN(ix, queries[:4], 3)
	if err != nil {
		t.Fatalf("LNBNN: %v", err)
	}
	second, err := LNBNN(ix, queries[4:], 3)
	if err != nil {
		t.Fatalf("LNBNN: %v", err)
	}
	first.Merge(second)

	for label, want := range whole {
		if got := first[label]; math.Abs(got-want) > 1e-9 {
			t.Errorf("label %q: merged %v, whole-batch %v", label, got, want)
		}
	}
}

func TestScoreSkipsMissingScales(t *testing.T) {
	b := NewBuilder()
	err := b.Add("a", map[string][][]float32{
		"0.0200": {unitVector(4, 0), unitVector(4, 1), unitVector(4, 2)},
		"0.0400": {unitVector(4, 0), unitVector(4, 1), unitVector(4, 2)},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	ref, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	set, err := BuildIndexSet(ref, IndexConfig{})
	if err != nil {
		t.Fatalf("BuildIndexSet: %v", err)
	}

	// Queries only for one scale; the other must not fail or contribute.
	scores, err := set.Score(map[string][][]float32{"0.0200": {unitVector(4, 0)}}, 2)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("got %d keys, want 1", len(scores))
	}
}

// ---------------------------------------------------------------------------
// builder and reference set
// ---------------------------------------------------------------------------

func TestBuilderRejectsNonUnitRows(t *testing.T) {
	b := NewBuilder()
	err := b.Add("a", map[string][][]float32{"0.0200": {{0.5, 0.5}}})
	if err == nil {
		t.Fatal("expected error for non-unit descriptor")
	}
}

func TestBuilderRejectsDimMismatch(t *testing.T) {
	b := NewBuilder()
	if err := b.Add("a", map[string][][]float32{"0.0200": {unitVector(4, 0)}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add("b", map[string][][]float32{"0.0200": {unitVector(5, 0)}}); err == nil {
		t.Fatal("expected error for dimension mismatch")
	}
}

func TestBuilderEmptyFinalize(t *testing.T) {
	if _, err := NewBuilder().Finalize(); err == nil {
		t.Fatal("expected error finalizing an empty builder")
	}
}

func TestFingerprint(t *testing.T) {
	build := func(label string) *ReferenceSet {
		b := NewBuilder()
		if err := b.Add(label, map[string][][]float32{"0.0200": {unitVector(4, 0), unitVector(4, 1)}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		ref, err := b.Finalize()
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		return ref
	}

	a1, a2, b1 := build("a"), build("a"), build("b")
	if a1.Fingerprint() != a2.Fingerprint() {
		t.Error("identical reference sets must share a fingerprint")
	}
	if a1.Fingerprint() == b1.Fingerprint() {
		t.Error("different labels must change the fingerprint")
	}
}

// ---------------------------------------------------------------------------
// persistence
// ---------------------------------------------------------------------------

func TestIndexSaveLoad(t *testing.T) {
	rng := rand.New(rand.NewPCG(17, 17))
	vectors := randVectors(rng, 80, 8)
	labels := make([]string, 80)
	for i := range labels {
		labels[i] = []string{"a", "b"}[i%2]
	}
	ix, err := BuildIndex(IndexConfig{Dim: 8}, vectors, labels)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	var buf bytes.Buffer
	if err := ix.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadIndex(&buf)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if loaded.Len() != ix.Len() || loaded.Dim() != ix.Dim() {
		t.Fatalf("loaded shape %dx%d, want %dx%d", loaded.Len(), loaded.Dim(), ix.Len(), ix.Dim())
	}

	for q := 0; q < 10; q++ {
		query := randVectors(rng, 1, 8)[0]
		a, _ := ix.Search(query, 4)
		b, _ := loaded.Search(query, 4)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("query %d neighbor %d differs after reload: %+v vs %+v", q, i, a[i], b[i])
			}
		}
	}
}

func TestIndexSetSaveLoad(t *testing.T) {
	b := NewBuilder()
	err := b.Add("a", map[string][][]float32{
		"0.0200": {unitVector(4, 0), unitVector(4, 1), unitVector(4, 2)},
		"0.0400": {unitVector(4, 1), unitVector(4, 2), unitVector(4, 3)},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add("b", map[string][][]float32{
		"0.0200": {unitVector(4, 3)},
		"0.0400": {unitVector(4, 0)},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ref, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	set, err := BuildIndexSet(ref, IndexConfig{})
	if err != nil {
		t.Fatalf("BuildIndexSet: %v", err)
	}

	var buf bytes.Buffer
	if err := set.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadIndexSet(&buf)
	if err != nil {
		t.Fatalf("LoadIndexSet: %v", err)
	}
	if len(loaded.Scales()) != 2 {
		t.Fatalf("loaded %d scales, want 2", len(loaded.Scales()))
	}
	queries := map[string][][]float32{"0.0200": {unitVector(4, 0)}, "0.0400": {unitVector(4, 1)}}
	want, err := set.Score(queries, 2)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	got, err := loaded.Score(queries, 2)
	if err != nil {
		t.Fatalf("Score after reload: %v", err)
	}
	for label, w := range want {
		if g := got[label]; math.Abs(g-w) > 1e-9 {
			t.Errorf("label %q: reload score %v, want %v", label, g, w)
		}
	}
}

func TestLoadIndexRejectsGarbage(t *testing.T) {
	if _, err := LoadIndex(bytes.NewReader([]byte("not msgpack"))); err == nil {
		t.Error("expected error decoding garbage")
	}
}
