package cache

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Cache. It is safe for concurrent use and
// suited to tests and one-shot extraction runs where persistence buys
// nothing.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory Cache.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, stage, key string) ([]byte, error) {
	k := string(encodeKey(stage, key))
	m.mu.RLock()
	v, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Put(_ context.Context, stage, key string, blob []byte) error {
	k := string(encodeKey(stage, key))
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.mu.Lock()
	m.data[k] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, stage, key string) error {
	k := string(encodeKey(stage, key))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Keys(_ context.Context, stage string) iter.Seq2[string, error] {
	prefix := string(stagePrefix(stage))
	m.mu.RLock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	return func(yield func(string, error) bool) {
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (m *Memory) DropStage(_ context.Context, stage string) error {
	prefix := string(stagePrefix(stage))
	m.mu.Lock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
