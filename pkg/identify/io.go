package identify

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// indexFileVersion guards the serialized layout. Bump on any change to
// indexFile and reject older payloads on load.
const indexFileVersion = 1

type indexFile struct {
	Version  int         `msgpack:"version"`
	Config   IndexConfig `msgpack:"config"`
	Labels   []string    `msgpack:"labels"`
	Levels   []int       `msgpack:"levels"`
	Entry    int32       `msgpack:"entry"`
	MaxLevel int         `msgpack:"max_level"`
	Vectors  [][]float32 `msgpack:"vectors"`
	Friends  [][][]int32 `msgpack:"friends"`
}

// Save writes the full index, graph included, to w. The saved form
// restores to an identical index without rebuilding.
func (ix *Index) Save(w io.Writer) error {
	f := indexFile{
		Version:  indexFileVersion,
		Config:   ix.cfg,
		Labels:   ix.labels,
		Levels:   ix.levels,
		Entry:    ix.entry,
		MaxLevel: ix.maxLevel,
		Vectors:  ix.vectors,
		Friends:  ix.friends,
	}
	if err := msgpack.NewEncoder(w).Encode(&f); err != nil {
		return fmt.Errorf("identify: encoding index: %w", err)
	}
	return nil
}

// LoadIndex restores an index previously written with [Index.Save].
func LoadIndex(r io.Reader) (*Index, error) {
	var f indexFile
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("identify: decoding index: %w", err)
	}
	if f.Version != indexFileVersion {
		return nil, fmt.Errorf("identify: unsupported index version %d, want %d", f.Version, indexFileVersion)
	}
	if len(f.Vectors) != len(f.Labels) || len(f.Vectors) != len(f.Levels) || len(f.Vectors) != len(f.Friends) {
		return nil, fmt.Errorf("identify: corrupt index: mismatched row counts")
	}
	if int(f.Entry) < 0 || int(f.Entry) >= len(f.Vectors) {
		return nil, fmt.Errorf("identify: corrupt index: entry row %d out of range", f.Entry)
	}
	for i, v := range f.Vectors {
		if len(v) != f.Config.Dim {
			return nil, fmt.Errorf("identify: corrupt index: row %d has dim %d, want %d", i, len(v), f.Config.Dim)
		}
	}
	return &Index{
		cfg:      f.Config,
		vectors:  f.Vectors,
		labels:   f.Labels,
		levels:   f.Levels,
		friends:  f.Friends,
		entry:    f.Entry,
		maxLevel: f.MaxLevel,
	}, nil
}

type indexSetFile struct {
	Version int      `msgpack:"version"`
	Scales  []string `msgpack:"scales"`
}

// Save writes the whole index set as one stream: a header naming the
// scales, followed by one index per scale in header order.
func (s *IndexSet) Save(w io.Writer) error {
	hdr := indexSetFile{Version: indexFileVersion, Scales: s.scales}
	if err := msgpack.NewEncoder(w).Encode(&hdr); err != nil {
		return fmt.Errorf("identify: encoding index set header: %w", err)
	}
	for _, scale := range s.scales {
		if err := s.indexes[scale].Save(w); err != nil {
			return fmt.Errorf("identify: scale %s: %w", scale, err)
		}
	}
	return nil
}

// LoadIndexSet restores an index set written with [IndexSet.Save].
func LoadIndexSet(r io.Reader) (*IndexSet, error) {
	dec := msgpack.NewDecoder(r)
	var hdr indexSetFile
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("identify: decoding index set header: %w", err)
	}
	if hdr.Version != indexFileVersion {
		return nil, fmt.Errorf("identify: unsupported index set version %d, want %d", hdr.Version, indexFileVersion)
	}
	set := &IndexSet{
		scales:  hdr.Scales,
		indexes: make(map[string]*Index, len(hdr.Scales)),
	}
	for _, scale := range hdr.Scales {
		var f indexFile
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("identify: decoding index for scale %s: %w", scale, err)
		}
		if f.Version != indexFileVersion {
			return nil, fmt.Errorf("identify: scale %s: unsupported index version %d", scale, f.Version)
		}
		set.indexes[scale] = &Index{
			cfg:      f.Config,
			vectors:  f.Vectors,
			labels:   f.Labels,
			levels:   f.Levels,
			friends:  f.Friends,
			entry:    f.Entry,
			maxLevel: f.MaxLevel,
		}
	}
	return set, nil
}
