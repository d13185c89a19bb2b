package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/wildseas/finprint/pkg/identify"
	"github.com/wildseas/finprint/pkg/storage"
)

// BuildReference folds successful extraction results into a reference
// set. identities maps subject ID to identity label; every successful
// subject must have one. Failed subjects are skipped.
func BuildReference(results []Result, identities map[string]string) (*identify.ReferenceSet, error) {
	b := identify.NewBuilder()
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		label, ok := identities[r.Subject]
		if !ok {
			return nil, fmt.Errorf("pipeline: no identity for subject %s", r.Subject)
		}
		if err := b.Add(label, r.Descriptors); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

// indexPath is where an index snapshot lives in a FileStore, keyed by
// the reference set's content fingerprint.
func indexPath(fingerprint string) string {
	return "indexes/" + fingerprint + ".ann"
}

// LoadOrBuildIndexSet returns the index set for the reference set,
// reusing a stored snapshot when one exists for the same content.
// A corrupt snapshot is rebuilt, not fatal. Pass a nil store to always
// build in memory.
func LoadOrBuildIndexSet(ctx context.Context, fs storage.FileStore, ref *identify.ReferenceSet, cfg identify.IndexConfig, log *slog.Logger) (*identify.IndexSet, error) {
	if log == nil {
		log = slog.Default()
	}
	fp := ref.Fingerprint()
	path := indexPath(fp)

	if fs != nil {
		blob, err := storage.ReadAll(ctx, fs, path)
		switch {
		case err == nil:
			set, err := identify.LoadIndexSet(bytes.NewReader(blob))
			if err == nil {
				log.Info("index snapshot loaded", "fingerprint", fp)
				return set, nil
			}
			log.Warn("index snapshot corrupt, rebuilding", "path", path, "error", err)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("pipeline: reading index snapshot %s: %w", path, err)
		}
	}

	set, err := identify.BuildIndexSet(ref, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("index built", "fingerprint", fp, "scales", len(set.Scales()))

	if fs != nil {
		var buf bytes.Buffer
		if err := set.Save(&buf); err != nil {
			return nil, err
		}
		if err := storage.WriteAll(ctx, fs, path, buf.Bytes()); err != nil {
			log.Warn("index snapshot write failed", "path", path, "error", err)
		}
	}
	return set, nil
}

// Catalog holds the live index set and supports atomic replacement, so
// long-running query servers can rebuild the reference population
// without a maintenance window. The zero value is empty.
type Catalog struct {
	mu  sync.RWMutex
	set *identify.IndexSet
	fp  string
}

// Swap replaces the live index set. The old set keeps serving queries
// already in flight.
func (c *Catalog) Swap(set *identify.IndexSet, fingerprint string) {
	c.mu.Lock()
	c.set, c.fp = set, fingerprint
	c.mu.Unlock()
}

// Current returns the live index set and its fingerprint, or nil when
// no reference has been loaded yet.
func (c *Catalog) Current() (*identify.IndexSet, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set, c.fp
}
