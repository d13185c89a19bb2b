package identify

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

const unitNormTolerance = 1e-6

// Builder accumulates reference descriptors per scale across many
// subjects. Descriptor rows arrive grouped by scale key and tagged with
// the identity they belong to; [Builder.Finalize] freezes the collection
// into a [ReferenceSet]. A Builder is not safe for concurrent use.
type Builder struct {
	order   []string
	buckets map[string]*refRows
	dim     int
}

type refRows struct {
	vectors [][]float32
	labels  []string
}

// NewBuilder returns an empty reference-set builder.
func NewBuilder() *Builder {
	return &Builder{buckets: make(map[string]*refRows)}
}

// Add appends one subject's descriptors under the given identity label.
// descriptors maps scale key to that scale's descriptor rows. Every row
// must be unit-norm and all rows across the builder must share one
// dimension; violations report an error and leave the builder unchanged.
func (b *Builder) Add(label string, descriptors map[string][][]float32) error {
	if label == "" {
		return fmt.Errorf("identify: empty identity label")
	}
	// Validate before mutating so a failed Add has no partial effect.
	dim := b.dim
	for scale, rows := range descriptors {
		for i, v := range rows {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return fmt.Errorf("identify: scale %s row %d has dim %d, want %d", scale, i, len(v), dim)
			}
			if err := checkRowNorm(v); err != nil {
				return fmt.Errorf("identify: scale %s row %d for %q: %w", scale, i, label, err)
			}
		}
	}
	b.dim = dim

	for scale, rows := range descriptors {
		bucket := b.buckets[scale]
		if bucket == nil {
			bucket = &refRows{}
			b.buckets[scale] = bucket
			b.order = append(b.order, scale)
		}
		for _, v := range rows {
			bucket.vectors = append(bucket.vectors, v)
			bucket.labels = append(bucket.labels, label)
		}
	}
	return nil
}

func checkRowNorm(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1) > unitNormTolerance {
		return fmt.Errorf("descriptor norm %v is not unit", norm)
	}
	return nil
}

// Finalize freezes the accumulated rows into an immutable [ReferenceSet].
// It reports an error if no descriptors were added. The builder must not
// be reused afterwards.
func (b *Builder) Finalize() (*ReferenceSet, error) {
	scales := append([]string(nil), b.order...)
	sort.Strings(scales)
	total := 0
	for _, s := range scales {
		total += len(b.buckets[s].vectors)
	}
	if total == 0 {
		return nil, fmt.Errorf("identify: reference set has no descriptors")
	}
	return &ReferenceSet{scales: scales, buckets: b.buckets, dim: b.dim}, nil
}

// ReferenceSet is an immutable per-scale collection of labeled reference
// descriptor rows, ready to be indexed.
type ReferenceSet struct {
	scales  []string
	buckets map[string]*refRows
	dim     int
}

// Scales returns the scale keys in sorted order.
func (r *ReferenceSet) Scales() []string { return r.scales }

// Dim returns the descriptor dimension.
func (r *ReferenceSet) Dim() int { return r.dim }

// Rows returns the descriptor rows and the parallel identity labels for
// one scale. The returned slices are shared; callers must not mutate.
func (r *ReferenceSet) Rows(scale string) (vectors [][]float32, labels []string) {
	bucket := r.buckets[scale]
	if bucket == nil {
		return nil, nil
	}
	return bucket.vectors, bucket.labels
}

// Len returns the number of rows at one scale.
func (r *ReferenceSet) Len(scale string) int {
	bucket := r.buckets[scale]
	if bucket == nil {
		return 0
	}
	return len(bucket.vectors)
}

// Fingerprint returns a hex digest over every scale key, label and
// descriptor value. Two reference sets with identical contents share a
// fingerprint, so it keys cached index artifacts.
func (r *ReferenceSet) Fingerprint() string {
	h := sha256.New()
	var buf [4]byte
	for _, scale := range r.scales {
		h.Write([]byte(scale))
		bucket := r.buckets[scale]
		for i, v := range bucket.vectors {
			h.Write([]byte(bucket.labels[i]))
			for _, x := range v {
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
				h.Write(buf[:])
			}
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// IndexSet holds one search index per scale over a reference set.
type IndexSet struct {
	scales  []string
	indexes map[string]*Index
}

// BuildIndexSet builds one [Index] per scale of the reference set.
func BuildIndexSet(ref *ReferenceSet, cfg IndexConfig) (*IndexSet, error) {
	if cfg.Dim == 0 {
		cfg.Dim = ref.Dim()
	}
	set := &IndexSet{
		scales:  append([]string(nil), ref.Scales()...),
		indexes: make(map[string]*Index, len(ref.Scales())),
	}
	for _, scale := range set.scales {
		vectors, labels := ref.Rows(scale)
		ix, err := BuildIndex(cfg, vectors, labels)
		if err != nil {
			return nil, fmt.Errorf("identify: building index for scale %s: %w", scale, err)
		}
		set.indexes[scale] = ix
	}
	return set, nil
}

// Scales returns the scale keys in sorted order.
func (s *IndexSet) Scales() []string { return s.scales }

// At returns the index for one scale, or nil if absent.
func (s *IndexSet) At(scale string) *Index { return s.indexes[scale] }

// Identities returns the sorted union of identity labels across scales.
func (s *IndexSet) Identities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, scale := range s.scales {
		for _, l := range s.indexes[scale].Identities() {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	sort.Strings(out)
	return out
}

// MinRows returns the smallest per-scale row count, which bounds the
// usable neighbor count for scoring.
func (s *IndexSet) MinRows() int {
	min := 0
	for i, scale := range s.scales {
		n := s.indexes[scale].Len()
		if i == 0 || n < min {
			min = n
		}
	}
	return min
}
