package spool

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Backend backed by a map.
// It is safe for concurrent use and intended primarily for testing.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.data[string(e.Key)] = bytes.Clone(e.Value)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, string(k))
	}
	return nil
}

func (m *Memory) Scan(_ context.Context, prefix []byte) iter.Seq2[Entry, error] {
	// Snapshot matching keys under read lock.
	m.mu.RLock()
	var matches []Entry
	for k, v := range m.data {
		if strings.HasPrefix(k, string(prefix)) {
			matches = append(matches, Entry{Key: []byte(k), Value: bytes.Clone(v)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return bytes.Compare(matches[i].Key, matches[j].Key) < 0
	})

	return func(yield func(Entry, error) bool) {
		for _, e := range matches {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
