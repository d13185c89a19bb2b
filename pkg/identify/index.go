// Package identify matches query descriptors against a reference
// population and aggregates the evidence into per-identity scores.
//
// The reference set is built once per population ([Builder]), indexed per
// scale with an approximate nearest-neighbor graph ([Index]), and scored
// with the local naive-Bayes nearest-neighbor rule ([LNBNN]). Lower
// scores indicate stronger matches.
package identify

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// IndexConfig configures a reference [Index].
type IndexConfig struct {
	// Dim is the descriptor dimension. Required; must be positive.
	Dim int

	// M is the maximum number of graph connections per node per layer
	// (layer 0 allows 2*M). Default: 16.
	M int

	// EfConstruction is the candidate-list size while building.
	// Default: 200.
	EfConstruction int

	// EfSearch is the candidate-list size while querying. It is raised
	// to at least the requested neighbor count per query. Default: 64.
	EfSearch int

	// Seed drives level assignment. Builds over the same rows with the
	// same seed produce identical graphs. Default: 1.
	Seed uint64
}

func (c *IndexConfig) setDefaults() {
	if c.M < 2 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 64
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

func (c *IndexConfig) maxConns(layer int) int {
	if layer == 0 {
		return c.M * 2
	}
	return c.M
}

// Neighbor is one result of a nearest-neighbor query.
type Neighbor struct {
	Row   int     // row number in the reference array
	Label string  // identity label of that row
	Dist  float32 // exact euclidean distance to the query
}

// Index is a per-scale approximate nearest-neighbor structure over
// reference descriptor rows, each tagged with its identity label.
//
// An Index is write-once: [BuildIndex] constructs the whole graph, after
// which the index is immutable and safe for concurrent queries.
// Rebuilding a reference set means building a new Index and swapping it
// in atomically.
type Index struct {
	cfg      IndexConfig
	vectors  [][]float32
	labels   []string
	levels   []int
	friends  [][][]int32 // friends[row][layer] = neighbor rows
	entry    int32
	maxLevel int
}

// BuildIndex constructs the search graph over the given descriptor rows.
// labels runs parallel to vectors: one identity label per row. The input
// slices are retained; callers must not mutate them afterwards.
func BuildIndex(cfg IndexConfig, vectors [][]float32, labels []string) (*Index, error) {
	cfg.setDefaults()
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("identify: IndexConfig.Dim must be positive, got %d", cfg.Dim)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("identify: cannot build an index over zero rows")
	}
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("identify: %d rows but %d labels", len(vectors), len(labels))
	}
	for i, v := range vectors {
		if len(v) != cfg.Dim {
			return nil, fmt.Errorf("identify: row %d has dim %d, want %d", i, len(v), cfg.Dim)
		}
	}

	ix := &Index{
		cfg:     cfg,
		vectors: vectors,
		labels:  labels,
		levels:  make([]int, len(vectors)),
		friends: make([][][]int32, len(vectors)),
		entry:   -1,
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	levelMul := 1.0 / math.Log(float64(cfg.M))
	for row := range vectors {
		ix.insert(int32(row), randomLevel(rng, levelMul))
	}
	return ix, nil
}

func randomLevel(rng *rand.Rand, levelMul float64) int {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return int(-math.Log(u) * levelMul)
}

// Len returns the number of reference rows.
func (ix *Index) Len() int { return len(ix.vectors) }

// Dim returns the descriptor dimension.
func (ix *Index) Dim() int { return ix.cfg.Dim }

// Identities returns the sorted set of distinct identity labels.
func (ix *Index) Identities() []string {
	seen := make(map[string]bool, len(ix.labels))
	var out []string
	for _, l := range ix.labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// euclidean returns the exact euclidean distance between two vectors.
func euclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// ---------------------------------------------------------------------------
// Heaps for beam search
// ---------------------------------------------------------------------------

type distRow struct {
	row  int32
	dist float32
}

type nearHeap []distRow // min-heap by distance

func (h nearHeap) Len() int           { return len(h) }
func (h nearHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h nearHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nearHeap) Push(x any)        { *h = append(*h, x.(distRow)) }
func (h *nearHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type farHeap []distRow // max-heap by distance

func (h farHeap) Len() int           { return len(h) }
func (h farHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h farHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *farHeap) Push(x any)        { *h = append(*h, x.(distRow)) }
func (h *farHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func (ix *Index) insert(row int32, level int) {
	ix.levels[row] = level
	ix.friends[row] = make([][]int32, level+1)

	if ix.entry < 0 {
		ix.entry = row
		ix.maxLevel = level
		return
	}

	q := ix.vectors[row]
	ep := ix.entry

	// Greedy descent through layers above the new node's level.
	for l := ix.maxLevel; l > level; l-- {
		ep = ix.greedyClosest(q, ep, l)
	}

	top := level
	if ix.maxLevel < top {
		top = ix.maxLevel
	}
	for l := top; l >= 0; l-- {
		cands := ix.searchLayer(q, ep, ix.cfg.EfConstruction, l)
		m := ix.cfg.maxConns(l)
		if len(cands) > m {
			cands = cands[:m]
		}
		neigh := make([]int32, len(cands))
		for i, c := range cands {
			neigh[i] = c.row
		}
		ix.friends[row][l] = neigh

		// Bidirectional links, pruned back to the connection budget.
		for _, c := range cands {
			fr := append(ix.friends[c.row][l], row)
			if len(fr) > m {
				fr = ix.pruneNeighbors(c.row, fr, m)
			}
			ix.friends[c.row][l] = fr
		}
		if len(cands) > 0 {
			ep = cands[0].row
		}
	}

	if level > ix.maxLevel {
		ix.maxLevel = level
		ix.entry = row
	}
}

// pruneNeighbors keeps the m rows closest to the anchor row.
func (ix *Index) pruneNeighbors(anchor int32, rows []int32, m int) []int32 {
	a := ix.vectors[anchor]
	sort.SliceStable(rows, func(i, j int) bool {
		return euclidean(a, ix.vectors[rows[i]]) < euclidean(a, ix.vectors[rows[j]])
	})
	return append([]int32(nil), rows[:m]...)
}

// greedyClosest walks layer l toward q until no friend is closer.
func (ix *Index) greedyClosest(q []float32, ep int32, l int) int32 {
	cur := ep
	curDist := euclidean(q, ix.vectors[cur])
	for {
		improved := false
		if l < len(ix.friends[cur]) {
			for _, f := range ix.friends[cur][l] {
				if d := euclidean(q, ix.vectors[f]); d < curDist {
					cur, curDist = f, d
					improved = true
				}
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer runs a beam search of width ef at layer l and returns up to
// ef candidates sorted by ascending distance.
func (ix *Index) searchLayer(q []float32, ep int32, ef, l int) []distRow {
	visited := make(map[int32]bool, ef*4)
	visited[ep] = true

	epDist := euclidean(q, ix.vectors[ep])
	candidates := nearHeap{{row: ep, dist: epDist}}
	results := farHeap{{row: ep, dist: epDist}}

	for candidates.Len() > 0 {
		c := heap.Pop(&candidates).(distRow)
		if c.dist > results[0].dist && results.Len() >= ef {
			break
		}
		if l >= len(ix.friends[c.row]) {
			continue
		}
		for _, f := range ix.friends[c.row][l] {
			if visited[f] {
				continue
			}
			visited[f] = true
			d := euclidean(q, ix.vectors[f])
			if results.Len() < ef || d < results[0].dist {
				heap.Push(&candidates, distRow{row: f, dist: d})
				heap.Push(&results, distRow{row: f, dist: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]distRow, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&results).(distRow)
	}
	// Equal distances resolve by row for deterministic ordering.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].row < out[j].row
	})
	return out
}

// ---------------------------------------------------------------------------
// Query
// ---------------------------------------------------------------------------

// Search returns the k nearest reference rows to the query with exact
// euclidean distances, closest first. Ties resolve by row number.
// Safe for concurrent use once the index is built.
func (ix *Index) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != ix.cfg.Dim {
		return nil, fmt.Errorf("identify: query dim %d, want %d", len(query), ix.cfg.Dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("identify: k must be positive, got %d", k)
	}

	ep := ix.entry
	for l := ix.maxLevel; l > 0; l-- {
		ep = ix.greedyClosest(query, ep, l)
	}
	ef := ix.cfg.EfSearch
	if ef < k {
		ef = k
	}
	cands := ix.searchLayer(query, ep, ef, 0)
	if len(cands) > k {
		cands = cands[:k]
	}

	out := make([]Neighbor, len(cands))
	for i, c := range cands {
		out[i] = Neighbor{Row: int(c.row), Label: ix.labels[c.row], Dist: c.dist}
	}
	return out, nil
}
