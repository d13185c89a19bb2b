package contour

import (
	"container/heap"
	"image"
	"math"

	"github.com/wildseas/finprint/pkg/field"
)

// TraceConfig controls the minimum-cost path search.
type TraceConfig struct {
	// AllowDiagonal enables 8-connected steps. With false the path is
	// 4-connected.
	AllowDiagonal bool

	// Cost tunes the per-pixel path cost.
	Cost CostConfig
}

// Validate checks the configuration. Callers validate once up front;
// [Trace] itself only reports soft (per-subject) failures.
func (c *TraceConfig) Validate() error {
	c.Cost.setDefaults()
	return c.Cost.validate()
}

// step offsets: 4-connected first, diagonals after.
var traceSteps = [8]image.Point{
	{X: 1, Y: 0}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: -1},
	{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: -1, Y: -1},
}

// queueItem is a frontier entry in the shortest-path search.
type queueItem struct {
	idx  int32   // pixel index y*w+x
	dist float64 // best known path cost
	seq  uint64  // insertion order, breaks distance ties deterministically
}

type traceQueue []queueItem

func (q traceQueue) Len() int { return len(q) }
func (q traceQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q traceQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *traceQueue) Push(x any)  { *q = append(*q, x.(queueItem)) }
func (q *traceQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Trace finds the minimum-cost pixel path from start to end through the
// segmentation field. img is the grayscale refined localization whose
// gradient sharpens the cost; it may be nil to trace on the segmentation
// alone. Both anchors must already be mapped into the field's coordinate
// frame.
//
// The search is Dijkstra over the implicit pixel graph with stable
// insertion-order tie-breaking, so identical inputs always yield a
// byte-identical outline. A nil outline means no path exists or an anchor
// fell out of bounds; callers treat that as a soft failure.
func Trace(img, seg *field.Field, start, end image.Point, cfg TraceConfig) Outline {
	cfg.Cost.setDefaults()
	w, h := seg.Width(), seg.Height()
	if !seg.InBounds(start.X, start.Y) || !seg.InBounds(end.X, end.Y) {
		return nil
	}
	if start == end {
		return nil
	}

	var grad *field.Field
	if img != nil {
		grad = img.Gradient()
	}
	cost := costGrid(seg, grad, cfg.Cost)

	nSteps := 4
	if cfg.AllowDiagonal {
		nSteps = 8
	}

	dist := make([]float64, w*h)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	prev := make([]int32, w*h)
	for i := range prev {
		prev[i] = -1
	}
	done := make([]bool, w*h)

	startIdx := int32(start.Y*w + start.X)
	endIdx := int32(end.Y*w + end.X)
	dist[startIdx] = 0

	var seq uint64
	q := traceQueue{{idx: startIdx, dist: 0, seq: seq}}
	heap.Init(&q)

	for q.Len() > 0 {
		it := heap.Pop(&q).(queueItem)
		if done[it.idx] {
			continue
		}
		done[it.idx] = true
		if it.idx == endIdx {
			break
		}

		ux := int(it.idx) % w
		uy := int(it.idx) / w
		for s := 0; s < nSteps; s++ {
			vx := ux + traceSteps[s].X
			vy := uy + traceSteps[s].Y
			if vx < 0 || vx >= w || vy < 0 || vy >= h {
				continue
			}
			vIdx := int32(vy*w + vx)
			if done[vIdx] {
				continue
			}
			stepLen := 1.0
			if s >= 4 {
				stepLen = math.Sqrt2
			}
			edge := stepLen * (cost[it.idx] + cost[vIdx]) / 2
			if nd := it.dist + edge; nd < dist[vIdx] {
				dist[vIdx] = nd
				prev[vIdx] = it.idx
				seq++
				heap.Push(&q, queueItem{idx: vIdx, dist: nd, seq: seq})
			}
		}
	}

	if !done[endIdx] {
		return nil
	}

	// Walk predecessors back to the start and reverse in place.
	var path Outline
	for at := endIdx; at >= 0; at = prev[at] {
		path = append(path, image.Point{X: int(at) % w, Y: int(at) / w})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
