package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string][]Document)}
}

func (m *MemoryBackend) Load(ctx context.Context, collection string) ([]Document, error) {
	if err := ValidateName(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, ok := m.collections[collection]
	if !ok {
		return []Document{}, nil
	}
	return CloneAll(docs), nil
}

func (m *MemoryBackend) Save(ctx context.Context, collection string, docs []Document) error {
	if err := ValidateName(collection); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDocuments(collection, docs); err != nil {
		return &IOError{Op: "save", Collection: collection, Err: err}
	}
	copied := CloneAll(docs)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = copied
	return nil
}

func (m *MemoryBackend) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name, docs := range m.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Close() error { return nil }
