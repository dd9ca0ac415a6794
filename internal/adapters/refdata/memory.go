package refdata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemorySource keeps reference objects in memory. It is used by tests and
// by the offline CLI when tables are supplied inline.
type MemorySource struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemorySource returns a source seeded with objects.
func NewMemorySource(objects map[string][]byte) *MemorySource {
	m := &MemorySource{objects: make(map[string][]byte, len(objects))}
	for k, v := range objects {
		m.objects[k] = append([]byte(nil), v...)
	}
	return m
}

// Put stores or replaces an object.
func (m *MemorySource) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Driver implements Source.
func (m *MemorySource) Driver() Driver { return DriverMemory }

// List implements Source.
func (m *MemorySource) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Open implements Source.
func (m *MemorySource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
