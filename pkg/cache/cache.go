// Package cache stores intermediate extraction artifacts keyed by
// content hash, so re-running a pipeline over unchanged photographs
// reuses earlier work instead of recomputing it.
//
// Keys are two-part: a stage name (for example "outline" or
// "descriptors") and a content key derived from the inputs that produced
// the artifact. The package includes a BadgerDB-backed implementation
// for persistent caches and an in-memory one for tests and one-shot
// runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"iter"
)

// ErrMiss is returned when no artifact exists under a key.
var ErrMiss = errors.New("cache: miss")

// Cache is a blob store for stage artifacts. Implementations are safe
// for concurrent use.
type Cache interface {
	// Get retrieves the artifact stored under (stage, key).
	// Returns ErrMiss if absent.
	Get(ctx context.Context, stage, key string) ([]byte, error)

	// Put stores an artifact, overwriting any existing one.
	Put(ctx context.Context, stage, key string, blob []byte) error

	// Delete removes one artifact. No error if absent.
	Delete(ctx context.Context, stage, key string) error

	// Keys iterates over all content keys present for a stage, in
	// lexicographic order.
	Keys(ctx context.Context, stage string) iter.Seq2[string, error]

	// DropStage removes every artifact for a stage, invalidating it
	// after a parameter change.
	DropStage(ctx context.Context, stage string) error

	// Close releases any resources held by the cache.
	Close() error
}

// ContentKey hashes the given byte chunks into a hex content key.
// Chunk boundaries are length-prefixed so ("ab","c") and ("a","bc")
// produce different keys.
func ContentKey(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		putLen(&n, len(p))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func putLen(buf *[8]byte, n int) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(n >> (8 * i))
	}
}

// stage names are joined to content keys with this separator. Content
// keys are hex and stage names must not contain it.
const keySep = ':'

func encodeKey(stage, key string) []byte {
	b := make([]byte, 0, len(stage)+1+len(key))
	b = append(b, stage...)
	b = append(b, keySep)
	b = append(b, key...)
	return b
}

func stagePrefix(stage string) []byte {
	b := make([]byte, 0, len(stage)+1)
	b = append(b, stage...)
	b = append(b, keySep)
	return b
}
